/*
Package inbox is the Inbox Handler component (spec.md §4.E): the POST
/inbox pipeline that turns a signed ActivityStreams delivery into queued
work, responding 202 once the work is durably enqueued.

	┌───────────────────────────── PIPELINE ─────────────────────────────┐
	│                                                                       │
	│  read body (≤ MAX_BODY)                                               │
	│       │                                                               │
	│       ▼                                                               │
	│  verify signature + digest (skippable in dev, digest always checked) │
	│       │                                                               │
	│       ▼                                                               │
	│  activity.Parse (type/id/actor required)                              │
	│       │                                                               │
	│       ▼                                                               │
	│  repo.Authorize(domain(actor), restricted_mode)                       │
	│       │                                                               │
	│       ▼                                                               │
	│  classify by type ──► enqueue job(s) (Job Engine)                    │
	│       │                                                               │
	│       ▼                                                               │
	│  202 Accepted                                                         │
	│                                                                       │
	└───────────────────────────────────────────────────────────────────────┘

Dedup suppresses repeated Announce/Create fan-out for the same (actor,
inner object) pair within a short window, persisted to store.TreeDedup so
it survives a restart - unlike signature.ReplayGuard, which exists purely
to catch a signature being replayed and is deliberately in-memory.

classify never talks to the Delivery Workers directly; every effect in
spec.md §4.E's type table becomes a Job Engine submission, so a crash
between classification and delivery is recovered the same way any other
job failure is.
*/
package inbox
