// Package repo is the State Repository (spec.md §4.B): typed, domain-aware
// accessors built on pkg/store's KV Store Adapter. It is the only package
// that understands the key schema for listeners, actors, nodes, contacts,
// blocks/allows, settings, and media - everything else in the relay holds
// short-lived value copies, never live references into storage.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/relayerr"
	"github.com/cuemby/relay/pkg/store"
	"github.com/cuemby/relay/pkg/types"
	"github.com/rs/zerolog"
)

// Repo is the State Repository.
type Repo struct {
	kv     store.KV
	logger zerolog.Logger
}

// New wraps kv with the relay's domain schema.
func New(kv store.KV) *Repo {
	return &Repo{kv: kv, logger: log.WithComponent("repo")}
}

// Close releases the underlying store.
func (r *Repo) Close() error { return r.kv.Close() }

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	return relayerr.New(relayerr.StoreTransient, err)
}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b, nil
}

func decode(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// --- Listeners -------------------------------------------------------------

type listenerRecord struct {
	InboxIRI     string     `json:"inbox_iri"`
	CreatedAt    time.Time  `json:"created_at"`
	LastOnlineAt *time.Time `json:"last_online_at,omitempty"`
}

// CreateListener inserts a new listener. Per spec.md §4.B, writes happen in
// an order that leaves the database queryable after a crash in between:
// listeners is written before listener_inboxes.
func (r *Repo) CreateListener(l *types.Listener) error {
	rec := listenerRecord{InboxIRI: l.InboxIRI, CreatedAt: l.CreatedAt, LastOnlineAt: l.LastOnlineAt}
	val, err := encode(rec)
	if err != nil {
		return err
	}
	if err := r.kv.Put(store.TreeListeners, []byte(l.ActorIRI), val); err != nil {
		return wrapStoreErr(err)
	}

	authority, err := types.AuthorityOf(l.InboxIRI)
	if err != nil {
		return relayerr.New(relayerr.MalformedActivity, err)
	}
	if err := r.addToInboxIndex(authority, l.ActorIRI); err != nil {
		return err
	}
	return nil
}

func (r *Repo) addToInboxIndex(authority, actorIRI string) error {
	existing, ok, err := r.kv.Get(store.TreeListenerInboxes, []byte(authority))
	if err != nil {
		return wrapStoreErr(err)
	}
	var set []string
	if ok {
		if err := decode(existing, &set); err != nil {
			return err
		}
	}
	for _, a := range set {
		if a == actorIRI {
			return nil
		}
	}
	set = append(set, actorIRI)
	val, err := encode(set)
	if err != nil {
		return err
	}
	if err := r.kv.Put(store.TreeListenerInboxes, []byte(authority), val); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func (r *Repo) removeFromInboxIndex(authority, actorIRI string) error {
	existing, ok, err := r.kv.Get(store.TreeListenerInboxes, []byte(authority))
	if err != nil || !ok {
		return wrapStoreErr(err)
	}
	var set []string
	if err := decode(existing, &set); err != nil {
		return err
	}
	filtered := set[:0]
	for _, a := range set {
		if a != actorIRI {
			filtered = append(filtered, a)
		}
	}
	if len(filtered) == 0 {
		return wrapStoreErr(r.kv.Delete(store.TreeListenerInboxes, []byte(authority)))
	}
	val, err := encode(filtered)
	if err != nil {
		return err
	}
	return wrapStoreErr(r.kv.Put(store.TreeListenerInboxes, []byte(authority), val))
}

// GetListener returns the listener for actorIRI, if any.
func (r *Repo) GetListener(actorIRI string) (*types.Listener, bool, error) {
	val, ok, err := r.kv.Get(store.TreeListeners, []byte(actorIRI))
	if err != nil {
		return nil, false, wrapStoreErr(err)
	}
	if !ok {
		return nil, false, nil
	}
	var rec listenerRecord
	if err := decode(val, &rec); err != nil {
		return nil, false, err
	}
	return &types.Listener{
		ActorIRI:     actorIRI,
		InboxIRI:     rec.InboxIRI,
		CreatedAt:    rec.CreatedAt,
		LastOnlineAt: rec.LastOnlineAt,
	}, true, nil
}

// DeleteListener removes a listener and its inbox-authority index entry.
// Destroyed on Undo Follow, or when an operator purges an unreachable host
// (spec.md data model, Listener).
func (r *Repo) DeleteListener(actorIRI string) error {
	l, ok, err := r.GetListener(actorIRI)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if authority, authErr := types.AuthorityOf(l.InboxIRI); authErr == nil {
		if err := r.removeFromInboxIndex(authority, actorIRI); err != nil {
			return err
		}
	}
	return wrapStoreErr(r.kv.Delete(store.TreeListeners, []byte(actorIRI)))
}

// ListListeners returns every listener. Used by Announce fan-out and the
// maintenance loop's periodic sweeps.
func (r *Repo) ListListeners(ctx context.Context) ([]*types.Listener, error) {
	var out []*types.Listener
	err := r.kv.Range(ctx, store.TreeListeners, nil, func(k, v []byte) (bool, error) {
		var rec listenerRecord
		if err := decode(v, &rec); err != nil {
			return false, err
		}
		out = append(out, &types.Listener{
			ActorIRI:     string(k),
			InboxIRI:     rec.InboxIRI,
			CreatedAt:    rec.CreatedAt,
			LastOnlineAt: rec.LastOnlineAt,
		})
		return true, nil
	})
	return out, wrapStoreErr(err)
}

// ListenerActorsForAuthority returns every actor IRI that follows through
// the given inbox authority (spec.md listener_inboxes tree).
func (r *Repo) ListenerActorsForAuthority(authority string) ([]string, error) {
	val, ok, err := r.kv.Get(store.TreeListenerInboxes, []byte(authority))
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if !ok {
		return nil, nil
	}
	var set []string
	if err := decode(val, &set); err != nil {
		return nil, err
	}
	return set, nil
}

// UpdateLastOnline stamps the last-online time for a listener by actor IRI.
func (r *Repo) UpdateLastOnline(actorIRI string, when time.Time) error {
	l, ok, err := r.GetListener(actorIRI)
	if err != nil || !ok {
		return err
	}
	l.LastOnlineAt = &when
	return r.CreateListener(l) // upsert: same write path as insert
}
