package activity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBareActorAndObject(t *testing.T) {
	body := []byte(`{
		"type": "Follow",
		"id": "https://peer.example/activities/1",
		"actor": "https://peer.example/users/alice",
		"object": "https://relay.example/actor"
	}`)
	a, err := Parse(body)
	require.NoError(t, err)
	assert.Equal(t, KindFollow, a.Type)
	assert.Equal(t, "https://peer.example/users/alice", a.ActorIRI())
	assert.Equal(t, "https://relay.example/actor", a.ObjectIRI())
}

func TestParseEmbeddedActorAndObject(t *testing.T) {
	body := []byte(`{
		"type": "Create",
		"id": "https://peer.example/activities/2",
		"actor": {"id": "https://peer.example/users/bob", "type": "Person"},
		"object": {"id": "https://peer.example/notes/1", "type": "Note", "content": "hi"}
	}`)
	a, err := Parse(body)
	require.NoError(t, err)
	assert.Equal(t, "https://peer.example/users/bob", a.ActorIRI())
	assert.Equal(t, "https://peer.example/notes/1", a.ObjectIRI())
	assert.True(t, a.IsFanoutSource())
}

func TestParseRejectsMissingFields(t *testing.T) {
	_, err := Parse([]byte(`{"type": "Follow"}`))
	assert.Error(t, err)
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestIsVerbatimRelay(t *testing.T) {
	for _, k := range []Kind{KindDelete, KindUpdate, KindAdd, KindRemove} {
		a := &Activity{Type: k}
		assert.True(t, a.IsVerbatimRelay(), k)
	}
	a := &Activity{Type: KindFollow}
	assert.False(t, a.IsVerbatimRelay())
}

func TestBuildAcceptWrapsFollow(t *testing.T) {
	follow, err := Parse([]byte(`{"type":"Follow","id":"https://peer.example/1","actor":"https://peer.example/users/alice","object":"https://relay.example/actor"}`))
	require.NoError(t, err)

	out, err := BuildAccept("https://relay.example/actor", follow)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "Accept", decoded["type"])
	assert.Equal(t, "https://relay.example/actor", decoded["actor"])
	assert.NotEmpty(t, decoded["id"])
}

func TestBuildAnnounceWrapsInnerObject(t *testing.T) {
	inner := json.RawMessage(`{"id":"https://peer.example/notes/1","type":"Note"}`)
	out, err := BuildAnnounce("https://relay.example/actor", inner)
	require.NoError(t, err)

	var decoded struct {
		Type   string          `json:"type"`
		Object json.RawMessage `json:"object"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "Announce", decoded.Type)
	assert.JSONEq(t, string(inner), string(decoded.Object))
}

func TestBuildUndoFollowNestsFollow(t *testing.T) {
	out, err := BuildUndoFollow("https://relay.example/actor", "https://peer.example/users/alice")
	require.NoError(t, err)

	var decoded struct {
		Type   string `json:"type"`
		Object struct {
			Type   string `json:"type"`
			Object string `json:"object"`
		} `json:"object"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "Undo", decoded.Type)
	assert.Equal(t, "Follow", decoded.Object.Type)
	assert.Equal(t, "https://peer.example/users/alice", decoded.Object.Object)
}
