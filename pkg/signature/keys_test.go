package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseKeyPair(t *testing.T) {
	privPEM, pubPEM, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.Contains(t, privPEM, "RSA PRIVATE KEY")
	assert.Contains(t, pubPEM, "PUBLIC KEY")

	priv, err := ParsePrivateKey(privPEM)
	require.NoError(t, err)
	require.NoError(t, priv.Validate())

	pub, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)
	assert.Equal(t, priv.PublicKey.N, pub.N)
}

func TestParsePrivateKeyRejectsGarbage(t *testing.T) {
	_, err := ParsePrivateKey("not a pem")
	assert.Error(t, err)
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	_, err := ParsePublicKey("not a pem")
	assert.Error(t, err)
}
