package repo

import (
	"context"
	"time"

	"github.com/cuemby/relay/pkg/store"
	"github.com/cuemby/relay/pkg/types"
)

type contactRecord struct {
	State               types.ContactStatus `json:"state"`
	ConsecutiveFailures int                 `json:"consecutive_failures"`
	NextRetryAfter      time.Time           `json:"next_retry_after"`
	BecameUnreachableAt *time.Time          `json:"became_unreachable_at,omitempty"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// SaveContact upserts the per-host contact state the delivery circuit
// breaker consults before every send (spec.md data model, Connected-host
// contact state).
func (r *Repo) SaveContact(c *types.Contact) error {
	rec := contactRecord{
		State:               c.State,
		ConsecutiveFailures: c.ConsecutiveFailures,
		NextRetryAfter:      c.NextRetryAfter,
		BecameUnreachableAt: c.BecameUnreachableAt,
		UpdatedAt:           c.UpdatedAt,
	}
	val, err := encode(rec)
	if err != nil {
		return err
	}
	return wrapStoreErr(r.kv.Put(store.TreeContacts, []byte(c.Authority), val))
}

// GetContact returns the contact state for authority. A missing entry means
// the host has never been contacted and is treated as healthy.
func (r *Repo) GetContact(authority string) (*types.Contact, bool, error) {
	val, ok, err := r.kv.Get(store.TreeContacts, []byte(authority))
	if err != nil {
		return nil, false, wrapStoreErr(err)
	}
	if !ok {
		return nil, false, nil
	}
	var rec contactRecord
	if err := decode(val, &rec); err != nil {
		return nil, false, err
	}
	return &types.Contact{
		Authority:           authority,
		State:               rec.State,
		ConsecutiveFailures: rec.ConsecutiveFailures,
		NextRetryAfter:      rec.NextRetryAfter,
		BecameUnreachableAt: rec.BecameUnreachableAt,
		UpdatedAt:           rec.UpdatedAt,
	}, true, nil
}

// DeleteContact drops a host's contact state entirely, e.g. after all of its
// listeners have been purged following an UNREACHABLE timeout.
func (r *Repo) DeleteContact(authority string) error {
	return wrapStoreErr(r.kv.Delete(store.TreeContacts, []byte(authority)))
}

// ListContacts returns every known contact, used by the maintenance loop's
// per-minute sweep to find hosts due for a backing-off retry or past the
// unreachable purge threshold.
func (r *Repo) ListContacts(ctx context.Context) ([]*types.Contact, error) {
	var out []*types.Contact
	err := r.kv.Range(ctx, store.TreeContacts, nil, func(k, v []byte) (bool, error) {
		var rec contactRecord
		if err := decode(v, &rec); err != nil {
			return false, err
		}
		out = append(out, &types.Contact{
			Authority:           string(k),
			State:               rec.State,
			ConsecutiveFailures: rec.ConsecutiveFailures,
			NextRetryAfter:      rec.NextRetryAfter,
			BecameUnreachableAt: rec.BecameUnreachableAt,
			UpdatedAt:           rec.UpdatedAt,
		})
		return true, nil
	})
	return out, wrapStoreErr(err)
}

// ListContactsByState filters ListContacts to a single state, used by the
// maintenance loop to find hosts ready for promotion out of BACKING_OFF or
// due for UNREACHABLE purge.
func (r *Repo) ListContactsByState(ctx context.Context, state types.ContactStatus) ([]*types.Contact, error) {
	all, err := r.ListContacts(ctx)
	if err != nil {
		return nil, err
	}
	var out []*types.Contact
	for _, c := range all {
		if c.State == state {
			out = append(out, c)
		}
	}
	return out, nil
}
