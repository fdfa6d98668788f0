package repo

import (
	"context"
	"time"

	"github.com/cuemby/relay/pkg/store"
	"github.com/cuemby/relay/pkg/types"
)

type actorRecord struct {
	PublicKeyPEM string    `json:"pub_key_pem"`
	PublicKeyID  string    `json:"key_id"`
	ListenerRef  string    `json:"listener_ref,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// SaveActor upserts a cached actor document. Per spec.md §4.B, actors is
// written before key_id_index so a reader resolving through the index
// never sees a dangling pointer.
func (r *Repo) SaveActor(a *types.Actor) error {
	rec := actorRecord{
		PublicKeyPEM: a.PublicKeyPEM,
		PublicKeyID:  a.PublicKeyID,
		ListenerRef:  a.ListenerRef,
		SavedAt:      a.SavedAt,
	}
	val, err := encode(rec)
	if err != nil {
		return err
	}
	if err := r.kv.Put(store.TreeActors, []byte(a.ActorIRI), val); err != nil {
		return wrapStoreErr(err)
	}
	if err := r.kv.Put(store.TreeKeyIDIndex, []byte(a.PublicKeyID), []byte(a.ActorIRI)); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// GetActorByIRI returns the cached actor document for actorIRI.
func (r *Repo) GetActorByIRI(actorIRI string) (*types.Actor, bool, error) {
	val, ok, err := r.kv.Get(store.TreeActors, []byte(actorIRI))
	if err != nil {
		return nil, false, wrapStoreErr(err)
	}
	if !ok {
		return nil, false, nil
	}
	var rec actorRecord
	if err := decode(val, &rec); err != nil {
		return nil, false, err
	}
	return &types.Actor{
		ActorIRI:     actorIRI,
		PublicKeyPEM: rec.PublicKeyPEM,
		PublicKeyID:  rec.PublicKeyID,
		ListenerRef:  rec.ListenerRef,
		SavedAt:      rec.SavedAt,
	}, true, nil
}

// GetActorByKeyID resolves keyId -> actor via key_id_index, the lookup path
// the Actor Resolver uses on every inbound signature verification
// (spec.md §4.D).
func (r *Repo) GetActorByKeyID(keyID string) (*types.Actor, bool, error) {
	actorIRI, ok, err := r.kv.Get(store.TreeKeyIDIndex, []byte(keyID))
	if err != nil {
		return nil, false, wrapStoreErr(err)
	}
	if !ok {
		return nil, false, nil
	}
	return r.GetActorByIRI(string(actorIRI))
}

// ListActors returns every cached actor document, used by the maintenance
// sweep to find entries older than T_actor (spec.md §4.H).
func (r *Repo) ListActors(ctx context.Context) ([]*types.Actor, error) {
	var out []*types.Actor
	err := r.kv.Range(ctx, store.TreeActors, nil, func(k, v []byte) (bool, error) {
		var rec actorRecord
		if err := decode(v, &rec); err != nil {
			return true, nil
		}
		out = append(out, &types.Actor{
			ActorIRI:     string(k),
			PublicKeyPEM: rec.PublicKeyPEM,
			PublicKeyID:  rec.PublicKeyID,
			ListenerRef:  rec.ListenerRef,
			SavedAt:      rec.SavedAt,
		})
		return true, nil
	})
	return out, wrapStoreErr(err)
}

// DeleteActor removes a cached actor. The index entry is removed first so
// no key_id_index entry ever dangles, even if the process crashes between
// the two deletes.
func (r *Repo) DeleteActor(actorIRI string) error {
	a, ok, err := r.GetActorByIRI(actorIRI)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := r.kv.Delete(store.TreeKeyIDIndex, []byte(a.PublicKeyID)); err != nil {
		return wrapStoreErr(err)
	}
	return wrapStoreErr(r.kv.Delete(store.TreeActors, []byte(actorIRI)))
}
