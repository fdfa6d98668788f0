package activity

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const as2Context = "https://www.w3.org/ns/activitystreams"

// NewID mints a fresh activity IRI under the relay's own actor namespace,
// used for every relay-originated activity (Accept, Reject, Follow,
// Undo Follow, Announce wrapper).
func NewID(relayActorIRI string) string {
	return fmt.Sprintf("%s#%s", relayActorIRI, uuid.NewString())
}

type followLike struct {
	Context string `json:"@context"`
	Type    string `json:"type"`
	ID      string `json:"id"`
	Actor   string `json:"actor"`
	Object  any    `json:"object"`
}

// BuildAccept wraps the inbound Follow activity in an Accept from the relay.
func BuildAccept(relayActorIRI string, follow *Activity) ([]byte, error) {
	return json.Marshal(followLike{
		Context: as2Context,
		Type:    "Accept",
		ID:      NewID(relayActorIRI),
		Actor:   relayActorIRI,
		Object:  json.RawMessage(follow.Raw),
	})
}

// BuildReject wraps the inbound Follow activity in a Reject from the relay.
func BuildReject(relayActorIRI string, follow *Activity) ([]byte, error) {
	return json.Marshal(followLike{
		Context: as2Context,
		Type:    "Reject",
		ID:      NewID(relayActorIRI),
		Actor:   relayActorIRI,
		Object:  json.RawMessage(follow.Raw),
	})
}

// BuildFollow constructs a Follow of targetActorIRI from the relay, sent so
// the relay itself becomes a follower of the listener for signed delivery
// (spec.md §4.E, Follow row).
func BuildFollow(relayActorIRI, targetActorIRI string) ([]byte, error) {
	return json.Marshal(followLike{
		Context: as2Context,
		Type:    "Follow",
		ID:      NewID(relayActorIRI),
		Actor:   relayActorIRI,
		Object:  targetActorIRI,
	})
}

// BuildUndoFollow constructs an Undo of the relay's own Follow of
// targetActorIRI.
func BuildUndoFollow(relayActorIRI, targetActorIRI string) ([]byte, error) {
	inner := followLike{
		Context: "",
		Type:    "Follow",
		ID:      NewID(relayActorIRI),
		Actor:   relayActorIRI,
		Object:  targetActorIRI,
	}
	return json.Marshal(followLike{
		Context: as2Context,
		Type:    "Undo",
		ID:      NewID(relayActorIRI),
		Actor:   relayActorIRI,
		Object:  inner,
	})
}

// BuildAnnounce wraps innerObject (the raw AS2 object/activity being
// relayed) in an Announce from the relay, addressed to Public.
func BuildAnnounce(relayActorIRI string, innerObject json.RawMessage) ([]byte, error) {
	return json.Marshal(struct {
		Context string          `json:"@context"`
		Type    string          `json:"type"`
		ID      string          `json:"id"`
		Actor   string          `json:"actor"`
		To      []string        `json:"to"`
		Object  json.RawMessage `json:"object"`
	}{
		Context: as2Context,
		Type:    "Announce",
		ID:      NewID(relayActorIRI),
		Actor:   relayActorIRI,
		To:      []string{"https://www.w3.org/ns/activitystreams#Public"},
		Object:  innerObject,
	})
}
