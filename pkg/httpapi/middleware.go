package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireBearerToken gates the admin API behind API_TOKEN (spec.md §6:
// "Requires Authorization: Bearer <API_TOKEN>"). Generalizes the teacher's
// method-allowlist interceptor (pkg/api's ReadOnlyInterceptor) from a
// read/write split to a single shared-secret check, since the admin API
// has no unauthenticated read tier.
func (s *Server) requireBearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIToken)) != 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
