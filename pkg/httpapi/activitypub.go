package api

import (
	"encoding/json"
	"net/http"
)

const activityJSONType = `application/activity+json`

// activityPubContext is the JSON-LD context every actor/activity document
// this relay emits declares.
var activityPubContext = []any{
	"https://www.w3.org/ns/activitystreams",
	"https://w3id.org/security/v1",
}

type publicKeyDoc struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

type actorDoc struct {
	Context           []any        `json:"@context"`
	ID                string       `json:"id"`
	Type              string       `json:"type"`
	PreferredUsername string       `json:"preferredUsername"`
	Name              string       `json:"name,omitempty"`
	Summary           string       `json:"summary,omitempty"`
	Inbox             string       `json:"inbox"`
	Outbox            string       `json:"outbox"`
	Endpoints         endpointsDoc `json:"endpoints"`
	PublicKey         publicKeyDoc `json:"publicKey"`
}

type endpointsDoc struct {
	SharedInbox string `json:"sharedInbox"`
}

// handleActor answers GET /actor with the relay's own ActivityPub actor
// document (spec.md §6). The relay is an Application actor, not a Person:
// it has no outbox content of its own, only an inbox and a public key.
func (s *Server) handleActor(w http.ResponseWriter, r *http.Request) {
	doc := actorDoc{
		Context:           activityPubContext,
		ID:                s.cfg.Identity.ActorIRI,
		Type:              "Application",
		PreferredUsername: "relay",
		Summary:           s.cfg.LocalBlurb,
		Inbox:             s.cfg.Identity.InboxIRI,
		Outbox:            s.cfg.Identity.ActorIRI + "/outbox",
		Endpoints: endpointsDoc{
			SharedInbox: s.cfg.Identity.InboxIRI,
		},
		PublicKey: publicKeyDoc{
			ID:           s.cfg.Identity.PublicKeyID,
			Owner:        s.cfg.Identity.ActorIRI,
			PublicKeyPem: s.cfg.Identity.PublicKeyPEM,
		},
	}
	writeActivityJSON(w, http.StatusOK, doc)
}

func writeActivityJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", activityJSONType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
