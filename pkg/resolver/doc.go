/*
Package resolver is the Actor Resolver (spec.md §4.D).

	┌────────────────────────── RESOLVER ───────────────────────────┐
	│                                                                  │
	│  Resolve(keyId)                                                  │
	│       │                                                          │
	│       ▼                                                          │
	│  repo.GetActorByKeyID ──fresh (< T_actor)──► return cached       │
	│       │ stale/miss                                               │
	│       ▼                                                          │
	│  singleflight.Group.Do(keyId) ──► coalesce concurrent callers    │
	│       │                                                          │
	│       ▼                                                          │
	│  per-host rate.Limiter.Wait ──► Fetcher.FetchActor               │
	│       │                                                          │
	│       ▼                                                          │
	│  repo.SaveActor                                                  │
	│                                                                   │
	└───────────────────────────────────────────────────────────────────┘

A fetch failure classified NetworkTransient (5xx, connection error) falls
back to a stale cache entry if one exists rather than failing the caller;
NetworkPermanent (4xx, malformed document) evicts the cache entry instead.
*/
package resolver
