package inbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/relay/pkg/jobs"
	"github.com/cuemby/relay/pkg/repo"
	"github.com/cuemby/relay/pkg/resolver"
	"github.com/cuemby/relay/pkg/signature"
	"github.com/cuemby/relay/pkg/store"
	"github.com/cuemby/relay/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct{}

func (stubFetcher) FetchActor(ctx context.Context, keyID string) (*resolver.Document, error) {
	return nil, assert.AnError
}

func newTestHandler(t *testing.T, client *http.Client) (*Handler, *jobs.Engine, *repo.Repo) {
	t.Helper()
	kv, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	r := repo.New(kv)
	jobEngine := jobs.New(kv)
	res := resolver.New(r, stubFetcher{}, time.Hour)

	h := New(Config{
		Identity:          Identity{ActorIRI: "https://relay.example/actor", InboxIRI: "https://relay.example/inbox"},
		Repo:              r,
		Jobs:              jobEngine,
		Resolver:          res,
		Dedup:             NewDedup(kv),
		Client:            client,
		ValidateSignature: false,
	})
	return h, jobEngine, r
}

func postInbox(t *testing.T, h *Handler, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "https://relay.example/inbox", strings.NewReader(string(body)))
	req.Header.Set("Digest", signature.ComputeDigest(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServeHTTPAcceptsSelfFollowAndCreatesListener(t *testing.T) {
	var actorSrv *httptest.Server
	actorSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/activity+json")
		_, _ = w.Write([]byte(`{"id":"` + actorSrv.URL + `/actor","inbox":"` + actorSrv.URL + `/inbox","endpoints":{"sharedInbox":"` + actorSrv.URL + `/inbox"}}`))
	}))
	defer actorSrv.Close()

	h, jobEngine, r := newTestHandler(t, actorSrv.Client())

	body := []byte(`{"type":"Follow","id":"` + actorSrv.URL + `/follows/1","actor":"` + actorSrv.URL + `/actor","object":"https://relay.example/actor"}`)
	w := postInbox(t, h, body)
	require.Equal(t, http.StatusAccepted, w.Code)

	listener, ok, err := r.GetListener(actorSrv.URL + "/actor")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, actorSrv.URL+"/inbox", listener.InboxIRI)

	accept, ok, err := jobEngine.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.JobAccept, accept.Kind)
	require.NoError(t, jobEngine.Ack(accept))

	followBack, ok, err := jobEngine.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.JobFollow, followBack.Kind)
	require.NoError(t, jobEngine.Ack(followBack))
}

func TestServeHTTPRejectsBlockedDomain(t *testing.T) {
	h, _, r := newTestHandler(t, http.DefaultClient)
	require.NoError(t, r.AddBlock("blocked.example"))

	body := []byte(`{"type":"Follow","id":"https://blocked.example/follows/1","actor":"https://blocked.example/actor","object":"https://relay.example/actor"}`)
	w := postInbox(t, h, body)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestServeHTTPRejectsOversizedBody(t *testing.T) {
	h, _, _ := newTestHandler(t, http.DefaultClient)
	big := make([]byte, MaxBody+1)
	req := httptest.NewRequest(http.MethodPost, "https://relay.example/inbox", strings.NewReader(string(big)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServeHTTPRejectsMalformedActivity(t *testing.T) {
	h, _, _ := newTestHandler(t, http.DefaultClient)
	w := postInbox(t, h, []byte(`{"type":"Follow"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServeHTTPDedupSuppressesDuplicateAnnounce(t *testing.T) {
	h, jobEngine, _ := newTestHandler(t, http.DefaultClient)

	body := []byte(`{"type":"Announce","id":"https://peer.example/activities/1","actor":"https://peer.example/actor","object":{"id":"https://peer.example/notes/1","type":"Note"}}`)
	require.Equal(t, http.StatusAccepted, postInbox(t, h, body).Code)

	body2 := []byte(`{"type":"Announce","id":"https://peer.example/activities/2","actor":"https://peer.example/actor","object":{"id":"https://peer.example/notes/1","type":"Note"}}`)
	require.Equal(t, http.StatusAccepted, postInbox(t, h, body2).Code)

	_, ok, err := jobEngine.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	require.True(t, ok, "first Announce must enqueue a fan-out job")

	_, ok, err = jobEngine.Consume(context.Background(), types.QueueDeliver)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate inner object within the dedup window must be suppressed")
}
