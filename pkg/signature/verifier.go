package signature

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/relay/pkg/relayerr"
)

// clockSkew is the maximum age/future-skew tolerated on the Date header,
// the window spec.md §4.C calls "rejects requests whose Date header is more
// than one hour away from the current time".
const clockSkew = time.Hour

// PublicKeyLookup resolves keyId to the RSA public key that should have
// produced the Signature header, e.g. the Actor Resolver's GetPublicKey.
type PublicKeyLookup func(keyID string) (*rsa.PublicKey, error)

// Parsed is a decoded Signature header.
type Parsed struct {
	KeyID     string
	Algorithm string
	Headers   []string
	Signature []byte
}

// ParseSignatureHeader decodes the keyId/algorithm/headers/signature
// parameters out of an HTTP Signature header value.
func ParseSignatureHeader(header string) (*Parsed, error) {
	params := map[string]string{}
	for _, part := range splitSignatureParams(header) {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		params[strings.TrimSpace(k)] = strings.Trim(strings.TrimSpace(v), `"`)
	}

	keyID, ok := params["keyId"]
	if !ok || keyID == "" {
		return nil, relayerr.Newf(relayerr.SignatureInvalid, "signature header missing keyId")
	}
	sigB64, ok := params["signature"]
	if !ok || sigB64 == "" {
		return nil, relayerr.Newf(relayerr.SignatureInvalid, "signature header missing signature")
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, relayerr.New(relayerr.SignatureInvalid, fmt.Errorf("decode signature: %w", err))
	}

	algorithm := params["algorithm"]
	if algorithm == "" {
		algorithm = "rsa-sha256"
	}

	var headers []string
	if h, ok := params["headers"]; ok && h != "" {
		headers = strings.Fields(h)
	} else {
		headers = []string{"date"}
	}

	return &Parsed{KeyID: keyID, Algorithm: algorithm, Headers: headers, Signature: sig}, nil
}

func splitSignatureParams(header string) []string {
	var parts []string
	var depth int
	var cur strings.Builder
	for _, r := range header {
		switch r {
		case '"':
			depth ^= 1
			cur.WriteRune(r)
		case ',':
			if depth == 0 {
				parts = append(parts, cur.String())
				cur.Reset()
				continue
			}
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// Verify checks the inbound request's Date freshness, Digest correctness,
// and Signature validity against the key PublicKeyLookup resolves for the
// signer's keyId. body is the already-read request body. It does not
// perform replay protection; callers combine Verify with a ReplayGuard.
func Verify(req *http.Request, body []byte, lookup PublicKeyLookup) (*Parsed, error) {
	dateHeader := req.Header.Get("Date")
	if dateHeader == "" {
		return nil, relayerr.Newf(relayerr.SignatureInvalid, "missing Date header")
	}
	sent, err := time.Parse(http.TimeFormat, dateHeader)
	if err != nil {
		return nil, relayerr.New(relayerr.SignatureInvalid, fmt.Errorf("parse Date header: %w", err))
	}
	if skew := time.Since(sent); skew > clockSkew || skew < -clockSkew {
		return nil, relayerr.Newf(relayerr.SignatureInvalid, "Date header %s outside %s clock skew window", dateHeader, clockSkew)
	}

	if digest := req.Header.Get("Digest"); digest != "" {
		if err := VerifyDigest(digest, body); err != nil {
			return nil, err
		}
	}

	sigHeader := req.Header.Get("Signature")
	if sigHeader == "" {
		return nil, relayerr.Newf(relayerr.SignatureInvalid, "missing Signature header")
	}
	parsed, err := ParseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	pub, err := lookup(parsed.KeyID)
	if err != nil {
		return nil, err
	}

	signingString, err := buildSigningString(req, parsed.Headers)
	if err != nil {
		return nil, err
	}
	hashed := sha256.Sum256([]byte(signingString))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, hashed[:], parsed.Signature); err != nil {
		return nil, relayerr.New(relayerr.SignatureInvalid, fmt.Errorf("verify signature: %w", err))
	}

	return parsed, nil
}
