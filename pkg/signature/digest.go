package signature

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/cuemby/relay/pkg/relayerr"
)

// ComputeDigest returns the RFC 3230 "Digest" header value for body, the
// form every outbound and inbound activity carries (spec.md §4.C).
func ComputeDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
}

// VerifyDigest checks that the supplied Digest header value matches body,
// rejecting anything other than the SHA-256 algorithm this relay produces.
func VerifyDigest(digestHeader string, body []byte) error {
	parts := strings.SplitN(digestHeader, "=", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "SHA-256") {
		return relayerr.Newf(relayerr.DigestMismatch, "unsupported digest algorithm in %q", digestHeader)
	}
	want := "SHA-256=" + parts[1]
	got := ComputeDigest(body)
	if !strings.EqualFold(want, got) {
		return relayerr.Newf(relayerr.DigestMismatch, "digest mismatch: header %q, computed %q", digestHeader, got)
	}
	return nil
}
