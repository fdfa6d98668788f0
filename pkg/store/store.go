// Package store is the KV Store Adapter (spec.md §4.A): typed ordered
// trees over an embedded ordered key-value engine. It knows nothing about
// listeners, actors, or jobs - pkg/repo and pkg/jobs build the domain
// schema (spec.md §4.B) on top of the primitives defined here.
package store

import "context"

// Tree is a named keyspace, equivalent to a single BoltDB bucket. Keys are
// ordered lexicographically; values are opaque bytes that callers encode
// and decode themselves.
type Tree string

// KV is the ordered key-value engine contract. Every write MUST be durable
// before the call returns; Range MUST observe a consistent snapshot for the
// duration of iteration (spec.md §4.A).
type KV interface {
	// Get returns the value for key, or (nil, false) if absent.
	Get(tree Tree, key []byte) ([]byte, bool, error)

	// Put durably writes key->value, replacing any existing value.
	Put(tree Tree, key, value []byte) error

	// Delete removes key. It is not an error if key is absent.
	Delete(tree Tree, key []byte) error

	// Range iterates all (key, value) pairs in tree whose key has the
	// given prefix, in ascending key order, calling fn for each. Range
	// stops early if fn returns false or ctx is cancelled.
	Range(ctx context.Context, tree Tree, prefix []byte, fn func(key, value []byte) (more bool, err error)) error

	// CAS atomically compares the current value of key against expected
	// (nil means "key must be absent") and, if they match, writes newValue
	// (nil means "delete key"). It returns the value that was actually
	// current at the time of the attempt.
	CAS(tree Tree, key, expected, newValue []byte) (applied bool, current []byte, err error)

	// Close releases the underlying engine.
	Close() error
}
