/*
Package store is the KV Store Adapter: typed ordered trees over BoltDB
(bbolt), the relay's embedded key-value engine (spec.md §4.A).

# Architecture

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │               BoltKV                        │          │
	│  │  - File: <data-dir>/relay.db                │          │
	│  │  - Format: B+tree with MVCC                 │          │
	│  │  - Transactions: ACID with fsync             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Tree (bucket) layout            │          │
	│  │  listeners, listener_inboxes, actors,        │          │
	│  │  key_id_index, blocks, allows, settings,     │          │
	│  │  last_online, nodes, contacts, media,        │          │
	│  │  jobs, dedup                                 │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │        Get / Put / Delete / Range / CAS      │          │
	│  │  - Get/Put/Delete: single-key, always atomic│          │
	│  │  - Range: consistent snapshot, prefix scan  │          │
	│  │  - CAS: compare-and-swap, for Settings      │          │
	│  └──────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

Values are opaque bytes; encoding/decoding is the caller's job (pkg/repo and
pkg/jobs use JSON). This package has no notion of Listener, Actor, or Job -
it only knows about Trees and byte keys/values.

# Cross-tree invariants

bbolt gives single-key atomicity within one Update transaction. Invariants
that span trees - e.g. "write actors before key_id_index", "write listeners
before listener_inboxes" - are the State Repository's responsibility
(pkg/repo), not this package's: each inserting operation there performs
writes in an order that leaves the database queryable after a crash between
them, and readers tolerate the intermediate state (spec.md §4.B).
*/
package store
