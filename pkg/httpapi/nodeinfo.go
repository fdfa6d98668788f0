package api

import (
	"encoding/json"
	"net/http"
)

type nodeInfoDiscoveryResponse struct {
	Links []webfingerLink `json:"links"`
}

// handleNodeInfoDiscovery answers GET /.well-known/nodeinfo (spec.md §6),
// pointing at the 2.0 document this relay actually publishes.
func (s *Server) handleNodeInfoDiscovery(w http.ResponseWriter, r *http.Request) {
	resp := nodeInfoDiscoveryResponse{
		Links: []webfingerLink{
			{
				Rel:  "http://nodeinfo.diaspora.software/ns/schema/2.0",
				Href: absoluteURL(s, "/nodeinfo/2.0"),
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_ = json.NewEncoder(w).Encode(resp)
}

type nodeInfoUsers struct {
	Total int `json:"total"`
}

type nodeInfoUsage struct {
	Users nodeInfoUsers `json:"users"`
}

type nodeInfoSoftware struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type nodeInfoDocument struct {
	Version           string           `json:"version"`
	Software          nodeInfoSoftware `json:"software"`
	Protocols         []string         `json:"protocols"`
	OpenRegistrations bool             `json:"openRegistrations"`
	Usage             nodeInfoUsage    `json:"usage"`
	Metadata          map[string]any   `json:"metadata"`
}

// handleNodeInfo20 answers GET /nodeinfo/2.0 (spec.md §6) describing this
// relay's own software, not any connected host's.
func (s *Server) handleNodeInfo20(w http.ResponseWriter, r *http.Request) {
	listeners, err := s.cfg.Repo.ListListeners(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	doc := nodeInfoDocument{
		Version: "2.0",
		Software: nodeInfoSoftware{
			Name:    "relay",
			Version: s.cfg.Version,
		},
		Protocols:         []string{"activitypub"},
		OpenRegistrations: false,
		Usage: nodeInfoUsage{
			Users: nodeInfoUsers{Total: len(listeners)},
		},
		Metadata: map[string]any{
			"repository": s.cfg.SourceRepo,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_ = json.NewEncoder(w).Encode(doc)
}

func absoluteURL(s *Server, path string) string {
	if s.cfg.Hostname == "" {
		return path
	}
	scheme := "http"
	if s.cfg.HTTPS {
		scheme = "https"
	}
	return scheme + "://" + s.cfg.Hostname + path
}
