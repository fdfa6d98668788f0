package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/relay/pkg/relayerr"
)

// signedHeaders is the fixed header set this relay signs on every outbound
// delivery, matching what spec.md §4.C requires verifiers to find present.
var signedHeaders = []string{"(request-target)", "host", "date", "digest"}

// Sign attaches Date, Digest, and Signature headers to req for a POST of
// body to a remote inbox, signing with priv under keyID (the relay's own
// actor publicKeyId, e.g. https://relay.example/actor#main-key).
func Sign(req *http.Request, keyID string, priv *rsa.PrivateKey, body []byte) error {
	now := time.Now().UTC()
	req.Header.Set("Date", now.Format(http.TimeFormat))
	req.Header.Set("Digest", ComputeDigest(body))
	if req.Host == "" {
		req.Host = req.URL.Host
	}
	req.Header.Set("Host", req.Host)

	signingString, err := buildSigningString(req, signedHeaders)
	if err != nil {
		return err
	}

	hashed := sha256.Sum256([]byte(signingString))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, hashed[:])
	if err != nil {
		return relayerr.New(relayerr.SignatureInvalid, fmt.Errorf("sign: %w", err))
	}

	req.Header.Set("Signature", buildSignatureHeader(keyID, "rsa-sha256", signedHeaders, sig))
	return nil
}

func buildSigningString(req *http.Request, headers []string) (string, error) {
	var lines []string
	for _, h := range headers {
		switch h {
		case "(request-target)":
			u := req.URL
			if u == nil {
				return "", relayerr.Newf(relayerr.SignatureInvalid, "request has no URL")
			}
			target := u.Path
			if target == "" {
				target = "/"
			}
			if u.RawQuery != "" {
				target += "?" + u.RawQuery
			}
			lines = append(lines, fmt.Sprintf("(request-target): %s %s", strings.ToLower(req.Method), target))
		default:
			v := req.Header.Get(h)
			if h == "host" && v == "" {
				v = req.Host
			}
			lines = append(lines, fmt.Sprintf("%s: %s", strings.ToLower(h), v))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func buildSignatureHeader(keyID, algorithm string, headers []string, sig []byte) string {
	return fmt.Sprintf(`keyId="%s",algorithm="%s",headers="%s",signature="%s"`,
		keyID, algorithm, strings.Join(headers, " "), base64.StdEncoding.EncodeToString(sig))
}
