/*
Package delivery is the Delivery Workers component (spec.md §4.G): the
job handlers that turn queued work into signed outbound HTTP requests,
and the dispatcher that pulls jobs off the Job Engine's deliver and
maintenance queues and runs them across a bounded worker pool.

	┌─────────────────────────── DISPATCHER ────────────────────────────┐
	│                                                                      │
	│  N workers, each on a ticker:                                        │
	│    Consume(deliver|maintenance) ──► handle(job) ──► Ack | Retry      │
	│                                                                      │
	│  handle switches on job.Kind:                                        │
	│    deliver_one     ──► handleDeliverOne     (sign + POST)            │
	│    announce        ──► handleAnnounce       (fan out to listeners)   │
	│    follow/accept/                                                    │
	│    reject/undo_    ──► handleActivityTemplate (build + single send)  │
	│    follow                                                            │
	│    verbatim_relay  ──► handleVerbatimRelay  (fan out as-received)    │
	│    query_nodeinfo  ──► handleQueryNodeInfo  (discover + persist)     │
	│    query_instance  ──► handleQueryInstance  (best-effort metadata)   │
	│    refresh_actor   ──► handleRefreshActor   (resolver cache evict)   │
	│                                                                      │
	└──────────────────────────────────────────────────────────────────────┘

ContactBreakers wraps one sony/gobreaker.CircuitBreaker per inbox
authority, the connected-host contact state machine (HEALTHY /
BACKING_OFF / UNREACHABLE) from spec.md §3. handleDeliverOne consults it
before every send and reports the outcome after; breaker state changes
are mirrored into the Repository so they survive a restart.

A handler's returned error drives the dispatcher's Ack/Retry decision
via relayerr.Retryable - handlers never call jobs.Engine directly except
to submit new follow-on jobs (e.g. Announce enqueuing one deliver_one
per listener).
*/
package delivery
