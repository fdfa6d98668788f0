/*
Package health backs GET /healthz (spec.md §6, liveness). Checker is a
small interface (HTTP checks reused verbatim, a StoreChecker added for the
embedded KV store) and Registry runs the registered Checkers in order,
stopping at the first unhealthy one. Registry reports unhealthy only after
Config.Retries consecutive failed checks, and reports healthy throughout
the start period.

	registry := health.NewRegistry(health.NewStoreChecker(kv))
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !registry.Check(r.Context()).Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

HTTPChecker is kept general purpose - useful for probing any HTTP
dependency - even though the relay's only current dependency is its own
store.
*/
package health
