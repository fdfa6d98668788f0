package resolver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/relay/pkg/relayerr"
	"github.com/cuemby/relay/pkg/repo"
	"github.com/cuemby/relay/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls atomic.Int32
	doc   *Document
	err   error
	delay time.Duration
}

func (f *fakeFetcher) FetchActor(ctx context.Context, keyID string) (*Document, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func openTestResolver(t *testing.T, fetcher Fetcher, ttl time.Duration) *Resolver {
	t.Helper()
	kv, err := store.Open(t.TempDir())
	require.NoError(t, err)
	r := repo.New(kv)
	t.Cleanup(func() { _ = r.Close() })
	return New(r, fetcher, ttl)
}

func TestResolveFetchesOnMiss(t *testing.T) {
	fetcher := &fakeFetcher{doc: &Document{
		ActorIRI:     "https://peer.example/users/alice",
		PublicKeyID:  "https://peer.example/users/alice#main-key",
		PublicKeyPEM: "pem-bytes",
	}}
	res := openTestResolver(t, fetcher, time.Hour)

	actor, err := res.Resolve(context.Background(), "https://peer.example/users/alice#main-key")
	require.NoError(t, err)
	assert.Equal(t, "https://peer.example/users/alice", actor.ActorIRI)
	assert.EqualValues(t, 1, fetcher.calls.Load())
}

func TestResolveServesFreshCacheWithoutFetching(t *testing.T) {
	fetcher := &fakeFetcher{doc: &Document{
		ActorIRI:     "https://peer.example/users/bob",
		PublicKeyID:  "https://peer.example/users/bob#main-key",
		PublicKeyPEM: "pem-bytes",
	}}
	res := openTestResolver(t, fetcher, time.Hour)

	_, err := res.Resolve(context.Background(), "https://peer.example/users/bob#main-key")
	require.NoError(t, err)
	_, err = res.Resolve(context.Background(), "https://peer.example/users/bob#main-key")
	require.NoError(t, err)

	assert.EqualValues(t, 1, fetcher.calls.Load(), "second resolve within TTL must not re-fetch")
}

func TestResolveRefetchesAfterTTLExpiry(t *testing.T) {
	fetcher := &fakeFetcher{doc: &Document{
		ActorIRI:     "https://peer.example/users/carol",
		PublicKeyID:  "https://peer.example/users/carol#main-key",
		PublicKeyPEM: "pem-bytes",
	}}
	res := openTestResolver(t, fetcher, time.Nanosecond)

	_, err := res.Resolve(context.Background(), "https://peer.example/users/carol#main-key")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = res.Resolve(context.Background(), "https://peer.example/users/carol#main-key")
	require.NoError(t, err)

	assert.EqualValues(t, 2, fetcher.calls.Load())
}

func TestResolveSurfacesTransientFailureWithNoCache(t *testing.T) {
	fetcher := &fakeFetcher{err: relayerr.New(relayerr.NetworkTransient, assert.AnError)}
	res := openTestResolver(t, fetcher, time.Hour)

	_, err := res.Resolve(context.Background(), "https://peer.example/users/dave#main-key")
	assert.Error(t, err)
}

func TestResolveFallsBackToStaleOnTransientFailure(t *testing.T) {
	fetcher := &fakeFetcher{doc: &Document{
		ActorIRI:     "https://peer.example/users/erin",
		PublicKeyID:  "https://peer.example/users/erin#main-key",
		PublicKeyPEM: "pem-bytes",
	}}
	res := openTestResolver(t, fetcher, time.Nanosecond)

	_, err := res.Resolve(context.Background(), "https://peer.example/users/erin#main-key")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	fetcher.doc = nil
	fetcher.err = relayerr.New(relayerr.NetworkTransient, assert.AnError)

	actor, err := res.Resolve(context.Background(), "https://peer.example/users/erin#main-key")
	require.NoError(t, err, "stale cache entry should be served instead of propagating the error")
	assert.Equal(t, "https://peer.example/users/erin", actor.ActorIRI)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	fetcher := &fakeFetcher{doc: &Document{
		ActorIRI:     "https://peer.example/users/frank",
		PublicKeyID:  "https://peer.example/users/frank#main-key",
		PublicKeyPEM: "pem-bytes",
	}}
	res := openTestResolver(t, fetcher, time.Hour)

	_, err := res.Resolve(context.Background(), "https://peer.example/users/frank#main-key")
	require.NoError(t, err)
	require.NoError(t, res.Invalidate("https://peer.example/users/frank"))

	_, err = res.Resolve(context.Background(), "https://peer.example/users/frank#main-key")
	require.NoError(t, err)
	assert.EqualValues(t, 2, fetcher.calls.Load())
}
