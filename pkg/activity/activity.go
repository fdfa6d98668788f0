// Package activity is a tolerant ActivityStreams 2 (AS2) parser: a tagged
// variant over the activity types this relay understands, with an
// Other(raw JSON) fallthrough for everything it relays verbatim
// (spec.md §9 design notes).
package activity

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/relay/pkg/relayerr"
)

// Kind tags the activity types the Inbox Handler classifies on
// (spec.md §4.E step 5). Any other AS2 type string decodes as-is into a
// Kind value outside these constants; callers switch on the constants and
// ignore other values.
type Kind string

const (
	KindFollow   Kind = "Follow"
	KindAccept   Kind = "Accept"
	KindReject   Kind = "Reject"
	KindUndo     Kind = "Undo"
	KindAnnounce Kind = "Announce"
	KindCreate   Kind = "Create"
	KindDelete   Kind = "Delete"
	KindUpdate   Kind = "Update"
	KindAdd      Kind = "Add"
	KindRemove   Kind = "Remove"
)

// VerbatimKinds is the set of types the inbox handler fans out as-received
// rather than reconstructing (spec.md §4.E step 5, row 6).
var VerbatimKinds = map[Kind]bool{
	KindDelete: true,
	KindUpdate: true,
	KindAdd:    true,
	KindRemove: true,
}

// actorRef is either a bare IRI string or an embedded object carrying "id".
type actorRef struct {
	IRI string
}

func (a *actorRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		a.IRI = s
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	a.IRI = obj.ID
	return nil
}

func (a actorRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.IRI)
}

// objectRef is either a bare IRI string or an embedded object, whose own
// "id" is extracted. In both cases the raw bytes are retained for
// verbatim/Announce re-wrapping.
type objectRef struct {
	IRI string
	Raw json.RawMessage
}

func (o *objectRef) UnmarshalJSON(b []byte) error {
	o.Raw = append(json.RawMessage(nil), b...)
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		o.IRI = s
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	o.IRI = obj.ID
	return nil
}

// Activity is the parsed shape of an inbound POST body. Unknown fields are
// dropped silently; only the fields the relay acts on are modeled.
type Activity struct {
	Type   Kind      `json:"type"`
	ID     string    `json:"id"`
	Actor  actorRef  `json:"actor"`
	Object objectRef `json:"object"`

	// Raw holds the complete decoded body, used for verbatim fan-out and
	// for reconstructing the Announce wrapper around Object.Raw.
	Raw json.RawMessage `json:"-"`
}

// ActorIRI returns the activity's actor IRI.
func (a *Activity) ActorIRI() string { return a.Actor.IRI }

// ObjectIRI returns the activity's object IRI, whether it was sent as a
// bare string or an embedded object.
func (a *Activity) ObjectIRI() string { return a.Object.IRI }

// Parse decodes body as an AS2 activity, tolerant of unknown fields and of
// "actor"/"object" being either bare IRIs or embedded objects. Missing
// type, id, or actor is rejected per spec.md §4.E step 3.
func Parse(body []byte) (*Activity, error) {
	var a Activity
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, relayerr.New(relayerr.MalformedActivity, fmt.Errorf("decode activity: %w", err))
	}
	if a.Type == "" || a.ID == "" || a.ActorIRI() == "" {
		return nil, relayerr.Newf(relayerr.MalformedActivity, "activity missing required field(s): type=%q id=%q actor=%q", a.Type, a.ID, a.ActorIRI())
	}
	a.Raw = append(json.RawMessage(nil), body...)
	return &a, nil
}

// IsVerbatimRelay reports whether a's type is fanned out unmodified.
func (a *Activity) IsVerbatimRelay() bool { return VerbatimKinds[a.Type] }

// IsFanoutSource reports whether a's type (Announce/Create) triggers an
// Announce fan-out wrapping its inner object.
func (a *Activity) IsFanoutSource() bool { return a.Type == KindAnnounce || a.Type == KindCreate }
