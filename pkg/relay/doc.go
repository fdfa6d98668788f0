/*
Package relay assembles one running relay process out of the packages that
implement each piece of spec.md: pkg/store and pkg/repo for persistence,
pkg/jobs for the durable queue, pkg/resolver for actor/instance lookups,
pkg/signature for HTTP Signatures, pkg/inbox and pkg/delivery for the two
halves of the federation protocol, pkg/maintenance for the periodic sweeps,
and pkg/httpapi for everything served over HTTP.

	┌─────────────────────────── Relay ───────────────────────────┐
	│                                                                │
	│  New(cfg) opens the data directory, loads or generates the    │
	│  relay's keypair, and wires every component below against     │
	│  the same *repo.Repo and *jobs.Engine.                        │
	│                                                                │
	│  Start(ctx) brings them up in order and blocks until ctx is   │
	│  cancelled:                                                    │
	│    tracing.Init     -> global tracer provider                 │
	│    maintenance.Loop -> cron sweeps (actor refresh, purge...)   │
	│    metrics.Collector-> background gauge polling                │
	│    :9090/metrics    -> Prometheus scrape endpoint              │
	│    delivery.Dispatcher.Run -> worker pool draining the queue   │
	│    httpapi.Server.Start    -> blocks until ctx.Done()          │
	│                                                                │
	│  Shutdown runs in reverse: collector, maintenance, metrics     │
	│  server, tracer flush, then the store closes last so any       │
	│  in-flight write finishes before the file handle goes away.    │
	└────────────────────────────────────────────────────────────┘

A single Relay value owns one data directory for its entire lifetime; there
is no cluster membership, leader election, or distributed consensus here,
since each relay instance serves its own independent inbox and listener set.
*/
package relay
