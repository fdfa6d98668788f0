package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleMedia answers GET /media/:uuid (spec.md §6): redirect the caller
// to the remote URL this UUID was minted for, so avatars are proxied
// through this relay's own origin rather than hot-linked.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	if uuid == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	media, ok, err := s.cfg.Repo.GetMedia(uuid)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	http.Redirect(w, r, media.RemoteURL, http.StatusFound)
}
