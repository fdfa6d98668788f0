package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/relay/pkg/store"
	"github.com/cuemby/relay/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	kv, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return New(kv)
}

func TestSubmitCoalescesDuplicateID(t *testing.T) {
	e := openTestEngine(t)
	job, err := NewJob(types.JobAnnounce, types.QueueDeliver, types.AnnouncePayload{InnerObjectIRI: "https://peer.example/notes/1"})
	require.NoError(t, err)

	require.NoError(t, e.Submit(job))
	job.LastError = "should not overwrite"
	require.NoError(t, e.Submit(job))

	got, ok, err := e.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.LastError)
}

func TestConsumeSkipsNotYetDue(t *testing.T) {
	e := openTestEngine(t)
	job, err := NewJob(types.JobRefreshActor, types.QueueMaintenance, types.RefreshActorPayload{ActorIRI: "https://peer.example/users/alice"})
	require.NoError(t, err)
	job.NextRunAt = time.Now().Add(time.Hour)
	require.NoError(t, e.Submit(job))

	_, ok, err := e.Consume(context.Background(), types.QueueMaintenance)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeEnforcesPerHostSerialization(t *testing.T) {
	e := openTestEngine(t)
	j1, err := NewJob(types.JobDeliverOne, types.QueueDeliver, types.DeliverOnePayload{InboxIRI: "https://peer.example/inbox"})
	require.NoError(t, err)
	j2, err := NewJob(types.JobDeliverOne, types.QueueDeliver, types.DeliverOnePayload{InboxIRI: "https://peer.example/inbox/other-actor"})
	require.NoError(t, err)
	require.NoError(t, e.Submit(j1))
	require.NoError(t, e.Submit(j2))

	got1, ok, err := e.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = e.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	assert.False(t, ok, "second job to the same authority must not be consumable while the first is running")

	require.NoError(t, e.Ack(got1))

	_, ok, err = e.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	assert.True(t, ok, "authority lease must be released after Ack")
}

func TestRetryReschedulesWithBackoff(t *testing.T) {
	e := openTestEngine(t)
	job, err := NewJob(types.JobDeliverOne, types.QueueDeliver, types.DeliverOnePayload{InboxIRI: "https://peer.example/inbox"})
	require.NoError(t, err)
	require.NoError(t, e.Submit(job))

	got, ok, err := e.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, e.Retry(got, assert.AnError))

	_, ok, err = e.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	assert.False(t, ok, "job is not due yet, backoff must be in the future")
}

func TestRetryMarksFailedAfterMaxAttempts(t *testing.T) {
	e := openTestEngine(t)
	job, err := NewJob(types.JobDeliverOne, types.QueueDeliver, types.DeliverOnePayload{InboxIRI: "https://peer.example/inbox"})
	require.NoError(t, err)
	job.Attempts = MaxAttempts - 1
	require.NoError(t, e.Submit(job))

	got, ok, err := e.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, e.Retry(got, assert.AnError))

	val, ok, err := e.kv.Get(store.TreeJobs, []byte(job.ID))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(val), `"failed"`)
}

func TestRequeueOrphansPastTimeout(t *testing.T) {
	e := openTestEngine(t)
	job, err := NewJob(types.JobQueryNodeInfo, types.QueueMaintenance, types.HostQueryPayload{Host: "peer.example"})
	require.NoError(t, err)
	require.NoError(t, e.Submit(job))

	got, ok, err := e.Consume(context.Background(), types.QueueMaintenance)
	require.NoError(t, err)
	require.True(t, ok)

	future := got.TimeoutAt.Add(time.Second)
	n, err := e.RequeueOrphans(context.Background(), future)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err = e.Consume(context.Background(), types.QueueMaintenance)
	require.NoError(t, err)
	assert.True(t, ok, "orphaned job should be consumable again after requeue")
}

func TestBackoffMonotonicAndCapped(t *testing.T) {
	var prev time.Duration
	for n := 1; n <= MaxAttempts; n++ {
		d := Backoff(n)
		assert.LessOrEqual(t, d, time.Hour+time.Hour/5, "backoff must respect the 1h cap plus jitter")
		if n > 1 {
			assert.GreaterOrEqual(t, d, prev, "backoff must not decrease between attempts")
		}
		prev = d
	}
}
