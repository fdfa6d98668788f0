// Package signature is the HTTP Signature Engine (spec.md §4.C): it signs
// outbound deliveries with the relay's own key and verifies the Signature
// header on every inbound activity.
package signature

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/cuemby/relay/pkg/relayerr"
)

const keyBits = 2048

// GenerateKeyPair creates a fresh RSA keypair and PEM-encodes both halves.
// Called once per data directory, the moment pkg/repo.GetOrCreateSetting
// finds no persisted private key (spec.md data model, Private key: "exactly
// one key exists for the lifetime of the data directory").
func GenerateKeyPair() (privPEM, pubPEM string, err error) {
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return "", "", fmt.Errorf("generate rsa key: %w", err)
	}

	privBytes := x509.MarshalPKCS1PrivateKey(priv)
	privBlock := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes})

	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("marshal public key: %w", err)
	}
	pubBlock := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	return string(privBlock), string(pubBlock), nil
}

// ParsePrivateKey decodes a PEM-encoded PKCS1 RSA private key.
func ParsePrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, relayerr.Newf(relayerr.ConfigInvalid, "private key: invalid PEM block")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, relayerr.New(relayerr.ConfigInvalid, err)
	}
	return key, nil
}

// ParsePublicKey decodes a PEM-encoded PKIX RSA public key, as published in
// a remote actor document's publicKey.publicKeyPem field.
func ParsePublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, relayerr.Newf(relayerr.SignatureInvalid, "public key: invalid PEM block")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, relayerr.New(relayerr.SignatureInvalid, err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, relayerr.Newf(relayerr.SignatureInvalid, "public key: not RSA")
	}
	return rsaKey, nil
}
