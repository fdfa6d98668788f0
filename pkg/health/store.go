package health

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/relay/pkg/store"
)

// probeKey is a reserved settings key StoreChecker reads to confirm the
// store is still answering; it is never written.
var probeKey = []byte("__health_probe__")

// StoreChecker confirms the embedded KV store still answers reads, the
// one dependency the relay's own liveness (spec.md §6, GET /healthz)
// actually has.
type StoreChecker struct {
	kv store.KV
}

// NewStoreChecker constructs a StoreChecker over kv.
func NewStoreChecker(kv store.KV) *StoreChecker {
	return &StoreChecker{kv: kv}
}

// Check performs a single bounded Get against the settings tree.
func (s *StoreChecker) Check(ctx context.Context) Result {
	start := time.Now()
	_, _, err := s.kv.Get(store.TreeSettings, probeKey)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("store unreachable: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{
		Healthy:   true,
		Message:   "store responding",
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type identifies this as a TCP-class check: a direct read against a local
// resource rather than an HTTP round trip.
func (s *StoreChecker) Type() CheckType {
	return CheckTypeTCP
}
