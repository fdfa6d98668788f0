package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

type webfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href,omitempty"`
}

type webfingerResponse struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases,omitempty"`
	Links   []webfingerLink `json:"links"`
}

// handleWebFinger answers GET /.well-known/webfinger?resource=acct:relay@host
// (spec.md §6). Only the relay's own single well-known account resolves;
// this relay represents no other actors.
func (s *Server) handleWebFinger(w http.ResponseWriter, r *http.Request) {
	resource := r.URL.Query().Get("resource")
	if resource == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	acct := strings.TrimPrefix(resource, "acct:")
	user, host, ok := strings.Cut(acct, "@")
	if !ok || !strings.EqualFold(host, s.cfg.Hostname) || user != "relay" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	resp := webfingerResponse{
		Subject: resource,
		Aliases: []string{s.cfg.Identity.ActorIRI},
		Links: []webfingerLink{
			{Rel: "self", Type: activityJSONType, Href: s.cfg.Identity.ActorIRI},
		},
	}

	w.Header().Set("Content-Type", "application/jrd+json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_ = json.NewEncoder(w).Encode(resp)
}
