package api

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/relay/pkg/log"
)

// domainMutationRequest is the body for POST /api/v1/admin/{blocks,allows}
// (spec.md §6). Remove=false adds the domain, Remove=true removes it -
// mirroring the CLI's -b/-a flags and their -u inversion (spec.md §6: "-u
// inverts meaning of -b/-a").
type domainMutationRequest struct {
	Domain string `json:"domain"`
	Remove bool   `json:"remove"`
}

type domainListResponse struct {
	Domains []string `json:"domains"`
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	domains, err := s.cfg.Repo.ListBlocks(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, domainListResponse{Domains: domains})
}

func (s *Server) handleMutateBlocks(w http.ResponseWriter, r *http.Request) {
	var req domainMutationRequest
	if !decodeJSON(w, r, &req) || req.Domain == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var err error
	if req.Remove {
		err = s.cfg.Repo.RemoveBlock(req.Domain)
	} else {
		err = s.cfg.Repo.AddBlock(req.Domain)
	}
	if err != nil {
		log.WithComponent("httpapi").Error().Err(err).Str("domain", req.Domain).Msg("mutate blocks")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAllows(w http.ResponseWriter, r *http.Request) {
	domains, err := s.cfg.Repo.ListAllows(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, domainListResponse{Domains: domains})
}

func (s *Server) handleMutateAllows(w http.ResponseWriter, r *http.Request) {
	var req domainMutationRequest
	if !decodeJSON(w, r, &req) || req.Domain == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var err error
	if req.Remove {
		err = s.cfg.Repo.RemoveAllow(req.Domain)
	} else {
		err = s.cfg.Repo.AddAllow(req.Domain)
	}
	if err != nil {
		log.WithComponent("httpapi").Error().Err(err).Str("domain", req.Domain).Msg("mutate allows")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type listenerSummary struct {
	ActorIRI     string  `json:"actor_iri"`
	InboxIRI     string  `json:"inbox_iri"`
	CreatedAt    string  `json:"created_at"`
	LastOnlineAt *string `json:"last_online_at,omitempty"`
}

type listenerListResponse struct {
	Listeners []listenerSummary `json:"listeners"`
}

func (s *Server) handleListListeners(w http.ResponseWriter, r *http.Request) {
	listeners, err := s.cfg.Repo.ListListeners(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	out := make([]listenerSummary, 0, len(listeners))
	for _, l := range listeners {
		summary := listenerSummary{
			ActorIRI:  l.ActorIRI,
			InboxIRI:  l.InboxIRI,
			CreatedAt: l.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if l.LastOnlineAt != nil {
			when := l.LastOnlineAt.Format("2006-01-02T15:04:05Z07:00")
			summary.LastOnlineAt = &when
		}
		out = append(out, summary)
	}
	writeJSON(w, http.StatusOK, listenerListResponse{Listeners: out})
}

// listenerMutationRequest is the body for POST /api/v1/admin/listeners.
// Listeners are otherwise only created/removed by the Follow/Undo
// handshake (spec.md §4.E); this is the operator's forced-removal escape
// hatch, so Remove is the only supported action.
type listenerMutationRequest struct {
	ActorIRI string `json:"actor_iri"`
	Remove   bool   `json:"remove"`
}

func (s *Server) handleMutateListeners(w http.ResponseWriter, r *http.Request) {
	var req listenerMutationRequest
	if !decodeJSON(w, r, &req) || req.ActorIRI == "" || !req.Remove {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.cfg.Repo.DeleteListener(req.ActorIRI); err != nil {
		log.WithComponent("httpapi").Error().Err(err).Str("actor_iri", req.ActorIRI).Msg("remove listener")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
