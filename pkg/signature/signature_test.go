package signature

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyID = "https://relay.example/actor#main-key"

func mustSignedRequest(t *testing.T, priv *rsa.PrivateKey, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "https://remote.example/users/alice/inbox", bytes.NewReader(body))
	require.NoError(t, Sign(req, testKeyID, priv, body))
	return req
}

func readBody(t *testing.T, req *http.Request) []byte {
	t.Helper()
	b, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	return b
}

func TestSignThenVerifyRoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	body := []byte(`{"type":"Announce"}`)

	req := mustSignedRequest(t, priv, body)
	parsed, err := Verify(req, readBody(t, req), func(keyID string) (*rsa.PublicKey, error) {
		assert.Equal(t, testKeyID, keyID)
		return &priv.PublicKey, nil
	})
	require.NoError(t, err)
	assert.Equal(t, testKeyID, parsed.KeyID)
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	req := mustSignedRequest(t, priv, []byte(`{"type":"Announce"}`))

	_, err = Verify(req, []byte(`{"type":"tampered"}`), func(string) (*rsa.PublicKey, error) {
		return &priv.PublicKey, nil
	})
	assert.Error(t, err)
}

func TestVerifyRejectsStaleDate(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	body := []byte(`{}`)
	req := mustSignedRequest(t, priv, body)
	req.Header.Set("Date", time.Now().Add(-2*time.Hour).UTC().Format(http.TimeFormat))

	_, err = Verify(req, readBody(t, req), func(string) (*rsa.PublicKey, error) {
		return &priv.PublicKey, nil
	})
	assert.Error(t, err)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	body := []byte(`{}`)
	req := mustSignedRequest(t, priv, body)

	_, err = Verify(req, readBody(t, req), func(string) (*rsa.PublicKey, error) {
		return &other.PublicKey, nil
	})
	assert.Error(t, err)
}

func TestReplayGuardRejectsDuplicate(t *testing.T) {
	guard := NewReplayGuard(time.Hour)
	parsed := &Parsed{KeyID: testKeyID, Signature: []byte("sig-bytes")}

	assert.True(t, guard.Check(parsed), "first sighting must be accepted")
	assert.False(t, guard.Check(parsed), "second sighting of the same pair must be rejected")
}

func TestReplayGuardDistinguishesSignatures(t *testing.T) {
	guard := NewReplayGuard(time.Hour)
	a := &Parsed{KeyID: testKeyID, Signature: []byte("sig-a")}
	b := &Parsed{KeyID: testKeyID, Signature: []byte("sig-b")}

	assert.True(t, guard.Check(a))
	assert.True(t, guard.Check(b))
}
