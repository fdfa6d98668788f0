package health

import (
	"context"
	"testing"

	"github.com/cuemby/relay/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCheckerHealthyOnOpenStore(t *testing.T) {
	kv, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	checker := NewStoreChecker(kv)
	result := checker.Check(context.Background())
	assert.True(t, result.Healthy)
}

func TestRegistryToleratesOneFailureThenGoesUnhealthy(t *testing.T) {
	kv, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	registry := NewRegistry(NewStoreChecker(kv), failingChecker{})

	result := registry.Check(context.Background())
	assert.True(t, result.Healthy, "a single failed check must not flip liveness immediately")

	for i := 1; i < registry.config.Retries; i++ {
		result = registry.Check(context.Background())
	}
	assert.False(t, result.Healthy, "liveness must flip once Retries consecutive checks have failed")
}

type failingChecker struct{}

func (failingChecker) Check(ctx context.Context) Result {
	return Result{Healthy: false, Message: "always fails"}
}

func (failingChecker) Type() CheckType { return CheckTypeHTTP }
