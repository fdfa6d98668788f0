package api

import "net/http"

// handleHealthz answers GET /healthz (spec.md §6, liveness).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	result := s.cfg.Health.Check(r.Context())
	if !result.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
