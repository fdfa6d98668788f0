package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/relay/pkg/jobs"
	"github.com/cuemby/relay/pkg/repo"
	"github.com/cuemby/relay/pkg/store"
	"github.com/cuemby/relay/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T) (*Loop, *repo.Repo, *jobs.Engine) {
	t.Helper()
	kv, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	r := repo.New(kv)
	j := jobs.New(kv)
	return New(r, j), r, j
}

func TestRefreshActorsEnqueuesOnlyStaleActors(t *testing.T) {
	l, r, j := newTestLoop(t)

	fresh := &types.Actor{ActorIRI: "https://peer.example/actors/fresh", PublicKeyID: "k1", SavedAt: time.Now().UTC()}
	stale := &types.Actor{ActorIRI: "https://peer.example/actors/stale", PublicKeyID: "k2", SavedAt: time.Now().UTC().Add(-2 * TActor)}
	require.NoError(t, r.SaveActor(fresh))
	require.NoError(t, r.SaveActor(stale))

	require.NoError(t, l.refreshActors(context.Background()))

	job, ok, err := j.Consume(context.Background(), types.QueueMaintenance)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.JobRefreshActor, job.Kind)
	require.NoError(t, j.Ack(job))

	_, ok, err = j.Consume(context.Background(), types.QueueMaintenance)
	require.NoError(t, err)
	assert.False(t, ok, "only the stale actor should have been enqueued")
}

func TestQueryNodeInfoDedupsByAuthority(t *testing.T) {
	l, r, j := newTestLoop(t)

	require.NoError(t, r.CreateListener(&types.Listener{ActorIRI: "https://peer.example/actors/a", InboxIRI: "https://peer.example/inbox"}))
	require.NoError(t, r.CreateListener(&types.Listener{ActorIRI: "https://peer.example/actors/b", InboxIRI: "https://peer.example/inbox/shared"}))

	require.NoError(t, l.queryNodeInfo(context.Background()))

	job, ok, err := j.Consume(context.Background(), types.QueueMaintenance)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.JobQueryNodeInfo, job.Kind)
	require.NoError(t, j.Ack(job))

	_, ok, err = j.Consume(context.Background(), types.QueueMaintenance)
	require.NoError(t, err)
	assert.False(t, ok, "listeners sharing a host authority must only be polled once")
}

func TestMinuteSweepLeavesFreshLeasesAlone(t *testing.T) {
	l, _, j := newTestLoop(t)

	job, err := jobs.NewJob(types.JobDeliverOne, types.QueueDeliver, types.DeliverOnePayload{InboxIRI: "https://peer.example/inbox"})
	require.NoError(t, err)
	require.NoError(t, j.Submit(job))

	_, ok, err := j.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.minuteSweep(context.Background()))

	_, stillRunning, err := j.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	assert.False(t, stillRunning, "job is still within its timeout so must not be requeued yet")
}

func TestPromoteQuietHostsMovesBackingOffToHealthy(t *testing.T) {
	l, r, _ := newTestLoop(t)

	require.NoError(t, r.SaveContact(&types.Contact{
		Authority: "quiet.example",
		State:     types.ContactBackingOff,
		UpdatedAt: time.Now().UTC().Add(-2 * quietInterval),
	}))
	require.NoError(t, r.SaveContact(&types.Contact{
		Authority: "recent.example",
		State:     types.ContactBackingOff,
		UpdatedAt: time.Now().UTC(),
	}))

	require.NoError(t, l.promoteQuietHosts(context.Background(), time.Now().UTC()))

	quiet, ok, err := r.GetContact("quiet.example")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.ContactHealthy, quiet.State)

	recent, ok, err := r.GetContact("recent.example")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.ContactBackingOff, recent.State, "must not promote a host that just entered backing off")
}

func TestPurgeUnreachableHostsRemovesListeners(t *testing.T) {
	l, r, _ := newTestLoop(t)

	require.NoError(t, r.CreateListener(&types.Listener{ActorIRI: "https://dead.example/actors/a", InboxIRI: "https://dead.example/inbox"}))

	longAgo := time.Now().UTC().Add(-2 * TPurge)
	require.NoError(t, r.SaveContact(&types.Contact{
		Authority:           "dead.example",
		State:               types.ContactUnreachable,
		BecameUnreachableAt: &longAgo,
		UpdatedAt:           longAgo,
	}))

	require.NoError(t, l.purgeUnreachableHosts(context.Background(), time.Now().UTC()))

	_, ok, err := r.GetListener("https://dead.example/actors/a")
	require.NoError(t, err)
	assert.False(t, ok, "listener behind a long-unreachable host must be purged")

	_, ok, err = r.GetContact("dead.example")
	require.NoError(t, err)
	assert.False(t, ok, "contact record must be removed alongside its purged listeners")
}
