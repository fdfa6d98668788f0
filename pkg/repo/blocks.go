package repo

import (
	"context"

	"github.com/cuemby/relay/pkg/store"
)

// AddBlock blocks domain unconditionally and removes it from allows, so
// the invariant "no domain in both blocks and allows" (spec.md §8) holds
// immediately after this call returns.
func (r *Repo) AddBlock(domain string) error {
	if err := r.kv.Put(store.TreeBlocks, []byte(domain), []byte{}); err != nil {
		return wrapStoreErr(err)
	}
	return wrapStoreErr(r.kv.Delete(store.TreeAllows, []byte(domain)))
}

// RemoveBlock unblocks domain.
func (r *Repo) RemoveBlock(domain string) error {
	return wrapStoreErr(r.kv.Delete(store.TreeBlocks, []byte(domain)))
}

// IsBlocked reports whether domain is blocked.
func (r *Repo) IsBlocked(domain string) (bool, error) {
	_, ok, err := r.kv.Get(store.TreeBlocks, []byte(domain))
	return ok, wrapStoreErr(err)
}

// ListBlocks returns every blocked domain.
func (r *Repo) ListBlocks(ctx context.Context) ([]string, error) {
	var out []string
	err := r.kv.Range(ctx, store.TreeBlocks, nil, func(k, v []byte) (bool, error) {
		out = append(out, string(k))
		return true, nil
	})
	return out, wrapStoreErr(err)
}

// AddAllow allows domain and removes it from blocks, for the same reason
// AddBlock removes from allows.
func (r *Repo) AddAllow(domain string) error {
	if err := r.kv.Put(store.TreeAllows, []byte(domain), []byte{}); err != nil {
		return wrapStoreErr(err)
	}
	return wrapStoreErr(r.kv.Delete(store.TreeBlocks, []byte(domain)))
}

// RemoveAllow revokes domain's allow entry.
func (r *Repo) RemoveAllow(domain string) error {
	return wrapStoreErr(r.kv.Delete(store.TreeAllows, []byte(domain)))
}

// IsAllowed reports whether domain is on the allow list.
func (r *Repo) IsAllowed(domain string) (bool, error) {
	_, ok, err := r.kv.Get(store.TreeAllows, []byte(domain))
	return ok, wrapStoreErr(err)
}

// ListAllows returns every allowed domain.
func (r *Repo) ListAllows(ctx context.Context) ([]string, error) {
	var out []string
	err := r.kv.Range(ctx, store.TreeAllows, nil, func(k, v []byte) (bool, error) {
		out = append(out, string(k))
		return true, nil
	})
	return out, wrapStoreErr(err)
}

// Authorize applies the allowlist/blocklist policy from spec.md §4.E step 4.
func (r *Repo) Authorize(domain string, restrictedMode bool) (bool, error) {
	blocked, err := r.IsBlocked(domain)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}
	if !restrictedMode {
		return true, nil
	}
	return r.IsAllowed(domain)
}
