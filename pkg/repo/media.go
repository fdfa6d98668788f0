package repo

import (
	"context"
	"time"

	"github.com/cuemby/relay/pkg/store"
	"github.com/cuemby/relay/pkg/types"
)

type mediaRecord struct {
	RemoteURL string    `json:"remote_url"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SaveMedia upserts a cached-media mapping keyed by LocalUUID (spec.md data
// model, Media: "short-lived cache entries mapping a remote media URL to a
// locally proxied copy").
func (r *Repo) SaveMedia(m *types.Media) error {
	rec := mediaRecord{
		RemoteURL: m.RemoteURL,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
	val, err := encode(rec)
	if err != nil {
		return err
	}
	return wrapStoreErr(r.kv.Put(store.TreeMedia, []byte(m.LocalUUID), val))
}

// GetMedia returns the cached mapping for localUUID, if present and not
// expired. An expired entry is reported as absent; eviction itself is the
// maintenance loop's job via PurgeExpiredMedia.
func (r *Repo) GetMedia(localUUID string) (*types.Media, bool, error) {
	val, ok, err := r.kv.Get(store.TreeMedia, []byte(localUUID))
	if err != nil {
		return nil, false, wrapStoreErr(err)
	}
	if !ok {
		return nil, false, nil
	}
	var rec mediaRecord
	if err := decode(val, &rec); err != nil {
		return nil, false, err
	}
	m := &types.Media{
		LocalUUID: localUUID,
		RemoteURL: rec.RemoteURL,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}
	if time.Now().After(m.ExpiresAt) {
		return nil, false, nil
	}
	return m, true, nil
}

// DeleteMedia removes a cached mapping.
func (r *Repo) DeleteMedia(localUUID string) error {
	return wrapStoreErr(r.kv.Delete(store.TreeMedia, []byte(localUUID)))
}

// PurgeExpiredMedia deletes every media entry whose TTL has elapsed as of
// now, returning the count removed. Called from the maintenance loop's
// per-minute sweep.
func (r *Repo) PurgeExpiredMedia(ctx context.Context, now time.Time) (int, error) {
	var expired [][]byte
	err := r.kv.Range(ctx, store.TreeMedia, nil, func(k, v []byte) (bool, error) {
		var rec mediaRecord
		if err := decode(v, &rec); err != nil {
			return false, err
		}
		if now.After(rec.ExpiresAt) {
			key := make([]byte, len(k))
			copy(key, k)
			expired = append(expired, key)
		}
		return true, nil
	})
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	for _, k := range expired {
		if err := r.kv.Delete(store.TreeMedia, k); err != nil {
			return 0, wrapStoreErr(err)
		}
	}
	return len(expired), nil
}
