package types

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Listener is a remote server that has followed this relay. It is identified
// by the IRI of the actor that sent the Follow.
type Listener struct {
	ActorIRI     string
	InboxIRI     string // preferably the actor's sharedInbox
	CreatedAt    time.Time
	LastOnlineAt *time.Time
}

// InboxAuthority returns the URL authority (host[:port]) of the listener's
// inbox, used as the key for connected-host contact state.
func (l *Listener) InboxAuthority() (string, error) {
	return AuthorityOf(l.InboxIRI)
}

// AuthorityOf extracts the host[:port] authority from an absolute IRI.
func AuthorityOf(iri string) (string, error) {
	u, err := url.Parse(iri)
	if err != nil {
		return "", fmt.Errorf("parse iri: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("iri %q has no authority", iri)
	}
	return strings.ToLower(u.Host), nil
}

// Actor is a cached remote actor document. PublicKeyID resolves back to
// ActorIRI: the key is controlled by the actor it is cached under.
type Actor struct {
	ActorIRI     string
	PublicKeyPEM string
	PublicKeyID  string
	ListenerRef  string // Listener.ActorIRI, empty if this actor is not (yet) a listener
	SavedAt      time.Time
}

// Node is cached presentation metadata for a listener, discovered via
// NodeInfo/instance polling. Absence means "not yet discovered".
type Node struct {
	ListenerRef      string
	SoftwareName     string
	SoftwareVersion  string
	RegistrationOpen bool
	Description      string
	Contact          string
	UpdatedAt        time.Time
}

// ContactStatus is the health of a connected host's delivery contact.
type ContactStatus string

const (
	ContactHealthy     ContactStatus = "healthy"
	ContactBackingOff  ContactStatus = "backing_off"
	ContactUnreachable ContactStatus = "unreachable"
)

// Contact is per-host delivery state, keyed by inbox authority.
type Contact struct {
	Authority           string
	State               ContactStatus
	ConsecutiveFailures int
	NextRetryAfter      time.Time
	BecameUnreachableAt *time.Time
	UpdatedAt           time.Time
}

// JobStatus is the lifecycle state of a durable job record.
type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobFailed   JobStatus = "failed"
	JobComplete JobStatus = "complete"
)

// JobKind tags the payload carried by a Job.
type JobKind string

const (
	JobDeliverOne    JobKind = "deliver_one"
	JobAnnounce      JobKind = "announce"
	JobFollow        JobKind = "follow"
	JobAccept        JobKind = "accept"
	JobReject        JobKind = "reject"
	JobUndoFollow    JobKind = "undo_follow"
	JobVerbatimRelay JobKind = "verbatim_relay"
	JobQueryNodeInfo JobKind = "query_nodeinfo"
	JobQueryInstance JobKind = "query_instance"
	JobRefreshActor  JobKind = "refresh_actor"
)

// Queue names. DeliverOne jobs run with per-host serialization and the
// global worker budget; Maintenance and API jobs are low-volume.
const (
	QueueDeliver     = "deliver"
	QueueMaintenance = "maintenance"
	QueueAPI         = "api"
)

// Job is a durable unit of background work.
type Job struct {
	ID        string
	Kind      JobKind
	Queue     string
	Payload   []byte // kind-specific, JSON-encoded
	Status    JobStatus
	Attempts  int
	NextRunAt time.Time
	TimeoutAt time.Time
	LastError string
	CreatedAt time.Time
}

// Setting is a runtime-tunable key/value flag, written with compare-and-swap
// semantics (e.g. the relay's private key, restricted_mode_runtime).
type Setting struct {
	Key   string
	Value string
}

// Media is an opaque mapping used to proxy listener avatars through this
// relay instead of hot-linking the remote host.
type Media struct {
	LocalUUID string
	RemoteURL string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// DeliverOnePayload is the job payload for JobDeliverOne.
type DeliverOnePayload struct {
	InboxIRI         string            `json:"inbox_iri"`
	ListenerActorIRI string            `json:"listener_actor_iri,omitempty"`
	Body             []byte            `json:"body"`
	KeyID            string            `json:"key_id"`
	Headers          map[string]string `json:"headers,omitempty"`
}

// AnnouncePayload is the job payload for JobAnnounce.
type AnnouncePayload struct {
	SourceActorIRI string `json:"source_actor_iri"`
	InnerObjectIRI string `json:"inner_object_iri"`
	InnerObject    []byte `json:"inner_object"`
}

// ActivityTemplatePayload is the job payload for Accept/Reject/Follow/UndoFollow.
// FollowRaw carries the original inbound Follow activity for Accept/Reject,
// which must wrap it verbatim as their object; it is unused for Follow/UndoFollow.
type ActivityTemplatePayload struct {
	TargetActorIRI string `json:"target_actor_iri"`
	TargetInboxIRI string `json:"target_inbox_iri"`
	FollowRaw      []byte `json:"follow_raw,omitempty"`
}

// VerbatimRelayPayload is the job payload for JobVerbatimRelay (Delete,
// Update, Add, Remove fan-out of the received activity as-is).
type VerbatimRelayPayload struct {
	SourceActorIRI string `json:"source_actor_iri"`
	Activity       []byte `json:"activity"`
}

// HostQueryPayload is the job payload for QueryNodeInfo/QueryInstance.
type HostQueryPayload struct {
	Host string `json:"host"`
}

// RefreshActorPayload is the job payload for JobRefreshActor.
type RefreshActorPayload struct {
	ActorIRI string `json:"actor_iri"`
}
