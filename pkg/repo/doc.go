/*
Package repo is the State Repository (spec.md §4.B): the only package that
understands the relay's key schema, built on pkg/store's untyped KV trees.

# Entities and ownership

	┌──────────────────── STATE REPOSITORY ─────────────────────┐
	│                                                              │
	│  Listener    <-> listeners, listener_inboxes                │
	│  Actor       <-> actors, key_id_index                       │
	│  Node        <-> nodes                                      │
	│  Contact     <-> contacts                                   │
	│  blocks/allows <-> blocks, allows                            │
	│  Setting     <-> settings                                   │
	│  Media       <-> media                                      │
	│                                                              │
	└──────────────────────────────────────────────────────────────┘

Every persistent entity named in spec.md's data model except Job belongs to
this package exclusively - the Job Engine (pkg/jobs) owns the jobs tree
directly, since job lifecycle (lease, retry, ack) doesn't fit the plain
CRUD shape the rest of this package gives, and the Inbox Handler's dedup
window (pkg/inbox) owns the dedup tree.

Callers - the inbox pipeline, delivery dispatcher, maintenance loop, admin
API - never hold a live reference into storage. They call a Repo method,
get back a value copy, and call another Repo method to persist changes.
This is what spec.md §4.B means by "this package is the only owner of
these trees": no other package encodes or decodes these records.

# Crash safety

CreateListener/SaveActor write their primary record before their
secondary index; DeleteActor removes the index before the primary record.
This ordering, not a cross-tree transaction, is what keeps the index from
ever dangling across a crash (see pkg/store's doc comment).
*/
package repo
