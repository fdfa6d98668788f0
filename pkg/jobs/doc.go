/*
Package jobs is the Job Engine (spec.md §4.F).

	┌───────────────────────── JOB ENGINE ──────────────────────────┐
	│                                                                   │
	│  Submit(job) ──► jobs tree, status=pending (dedup by job_id)     │
	│                                                                   │
	│  Consume(queue) ──► scan pending+due jobs, skip leased           │
	│                     DeliverOne authorities, flip winner to       │
	│                     running, lease its authority                │
	│                                                                   │
	│  Ack(job)    ──► delete record, release lease                   │
	│  Retry(job)  ──► attempts++, backoff or terminal failed          │
	│                                                                   │
	│  RequeueOrphans(now) ──► running jobs past timeout_at go back    │
	│                          to pending (maintenance sweep)          │
	│                                                                   │
	└───────────────────────────────────────────────────────────────────┘

Consume's scan-then-flip is not a single bbolt transaction; the Engine
holds its own mutex across the sequence because the relay's concurrency
model is single-process (spec.md §5), so this is sufficient to make
Consume/Ack/Retry/RequeueOrphans mutually exclusive without needing
cross-tree transactions from the store layer.

Queues are just a job field (spec.md §4.F names deliver/maintenance/api);
this package does not special-case queue names beyond what callers pass
to Consume.
*/
package jobs
