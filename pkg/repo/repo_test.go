package repo

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/relay/pkg/store"
	"github.com/cuemby/relay/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	kv, err := store.Open(t.TempDir())
	require.NoError(t, err)
	r := New(kv)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestCreateAndGetListener(t *testing.T) {
	r := openTestRepo(t)

	l := &types.Listener{
		ActorIRI:  "https://remote.example/users/alice",
		InboxIRI:  "https://remote.example/users/alice/inbox",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, r.CreateListener(l))

	got, ok, err := r.GetListener(l.ActorIRI)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, l.InboxIRI, got.InboxIRI)

	actors, err := r.ListenerActorsForAuthority("remote.example")
	require.NoError(t, err)
	assert.Equal(t, []string{l.ActorIRI}, actors)
}

func TestDeleteListenerRemovesInboxIndex(t *testing.T) {
	r := openTestRepo(t)

	l := &types.Listener{
		ActorIRI:  "https://remote.example/users/bob",
		InboxIRI:  "https://remote.example/inbox",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, r.CreateListener(l))
	require.NoError(t, r.DeleteListener(l.ActorIRI))

	_, ok, err := r.GetListener(l.ActorIRI)
	require.NoError(t, err)
	assert.False(t, ok)

	actors, err := r.ListenerActorsForAuthority("remote.example")
	require.NoError(t, err)
	assert.Empty(t, actors)
}

func TestListListeners(t *testing.T) {
	r := openTestRepo(t)
	for _, iri := range []string{"https://a.example/u/1", "https://b.example/u/2"} {
		require.NoError(t, r.CreateListener(&types.Listener{
			ActorIRI: iri, InboxIRI: iri + "/inbox", CreatedAt: time.Now().UTC(),
		}))
	}
	all, err := r.ListListeners(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSaveActorAndResolveByKeyID(t *testing.T) {
	r := openTestRepo(t)

	a := &types.Actor{
		ActorIRI:     "https://remote.example/users/carol",
		PublicKeyPEM: "-----BEGIN PUBLIC KEY-----\n...\n-----END PUBLIC KEY-----",
		PublicKeyID:  "https://remote.example/users/carol#main-key",
		SavedAt:      time.Now().UTC(),
	}
	require.NoError(t, r.SaveActor(a))

	byIRI, ok, err := r.GetActorByIRI(a.ActorIRI)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.PublicKeyID, byIRI.PublicKeyID)

	byKey, ok, err := r.GetActorByKeyID(a.PublicKeyID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.ActorIRI, byKey.ActorIRI)
}

func TestDeleteActorRemovesKeyIDIndex(t *testing.T) {
	r := openTestRepo(t)

	a := &types.Actor{
		ActorIRI:     "https://remote.example/users/dave",
		PublicKeyPEM: "pem",
		PublicKeyID:  "https://remote.example/users/dave#main-key",
		SavedAt:      time.Now().UTC(),
	}
	require.NoError(t, r.SaveActor(a))
	require.NoError(t, r.DeleteActor(a.ActorIRI))

	_, ok, err := r.GetActorByKeyID(a.PublicKeyID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlockAllowMutualExclusion(t *testing.T) {
	r := openTestRepo(t)

	require.NoError(t, r.AddAllow("good.example"))
	ok, err := r.IsAllowed("good.example")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.AddBlock("good.example"))
	ok, err = r.IsAllowed("good.example")
	require.NoError(t, err)
	assert.False(t, ok, "blocking must remove any existing allow entry")

	blocked, err := r.IsBlocked("good.example")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestAuthorize(t *testing.T) {
	r := openTestRepo(t)
	require.NoError(t, r.AddBlock("bad.example"))
	require.NoError(t, r.AddAllow("good.example"))

	ok, err := r.Authorize("bad.example", false)
	require.NoError(t, err)
	assert.False(t, ok, "blocked domains are never authorized")

	ok, err = r.Authorize("anyone.example", false)
	require.NoError(t, err)
	assert.True(t, ok, "open mode authorizes any non-blocked domain")

	ok, err = r.Authorize("anyone.example", true)
	require.NoError(t, err)
	assert.False(t, ok, "restricted mode requires an explicit allow entry")

	ok, err = r.Authorize("good.example", true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetOrCreateSettingCoalesces(t *testing.T) {
	r := openTestRepo(t)

	calls := 0
	create := func() (string, error) {
		calls++
		return "generated-value", nil
	}

	v1, err := r.GetOrCreateSetting("relay_private_key", create)
	require.NoError(t, err)
	assert.Equal(t, "generated-value", v1)
	assert.Equal(t, 1, calls)

	v2, err := r.GetOrCreateSetting("relay_private_key", create)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, calls, "second call must not regenerate once a value is persisted")
}

func TestSchemaVersion(t *testing.T) {
	r := openTestRepo(t)

	_, ok, err := r.GetSchemaVersion()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.SetSchemaVersion("1"))
	v, ok, err := r.GetSchemaVersion()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestSaveAndListContactsByState(t *testing.T) {
	r := openTestRepo(t)

	require.NoError(t, r.SaveContact(&types.Contact{
		Authority: "healthy.example",
		State:     types.ContactHealthy,
		UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, r.SaveContact(&types.Contact{
		Authority:           "flaky.example",
		State:               types.ContactBackingOff,
		ConsecutiveFailures: 3,
		UpdatedAt:           time.Now().UTC(),
	}))

	backingOff, err := r.ListContactsByState(context.Background(), types.ContactBackingOff)
	require.NoError(t, err)
	require.Len(t, backingOff, 1)
	assert.Equal(t, "flaky.example", backingOff[0].Authority)
}

func TestSaveAndGetNode(t *testing.T) {
	r := openTestRepo(t)

	n := &types.Node{
		ListenerRef:      "https://remote.example/users/alice",
		SoftwareName:     "mastodon",
		SoftwareVersion:  "4.2.0",
		RegistrationOpen: true,
		UpdatedAt:        time.Now().UTC(),
	}
	require.NoError(t, r.SaveNode(n))

	got, ok, err := r.GetNode(n.ListenerRef)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mastodon", got.SoftwareName)

	require.NoError(t, r.DeleteNode(n.ListenerRef))
	_, ok, err = r.GetNode(n.ListenerRef)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMediaExpiry(t *testing.T) {
	r := openTestRepo(t)

	fresh := &types.Media{
		LocalUUID: "uuid-fresh",
		RemoteURL: "https://remote.example/avatar.png",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	expired := &types.Media{
		LocalUUID: "uuid-expired",
		RemoteURL: "https://remote.example/old.png",
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, r.SaveMedia(fresh))
	require.NoError(t, r.SaveMedia(expired))

	_, ok, err := r.GetMedia(fresh.LocalUUID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = r.GetMedia(expired.LocalUUID)
	require.NoError(t, err)
	assert.False(t, ok, "expired entries read back as absent")

	n, err := r.PurgeExpiredMedia(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err = r.GetMedia(fresh.LocalUUID)
	require.NoError(t, err)
	assert.True(t, ok, "purge must not remove unexpired entries")
}
