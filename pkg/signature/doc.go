/*
Package signature is the HTTP Signature Engine (spec.md §4.C).

# Architecture

	┌──────────────────────── SIGNATURE ENGINE ─────────────────────────┐
	│                                                                      │
	│   Outbound                          Inbound                         │
	│   ┌──────────────┐                  ┌──────────────────┐           │
	│   │ Sign(req, ...)│                 │ Verify(req, ...)  │           │
	│   │ - Date        │                 │ - Date within     │           │
	│   │ - Digest      │                 │   ±1h clock skew  │           │
	│   │ - Signature   │                 │ - Digest matches  │           │
	│   └──────┬───────┘                  │ - keyId resolved  │           │
	│          │                           │ - rsa-sha256 verify│          │
	│          ▼                           └─────────┬────────┘           │
	│   rsa.SignPKCS1v15                              ▼                   │
	│                                        ReplayGuard.Check             │
	│                                        (reject duplicate             │
	│                                         keyId+signature)             │
	└──────────────────────────────────────────────────────────────────────┘

keys.go generates and parses the RSA keypairs this relay and its remote
peers publish as publicKey.publicKeyPem. digest.go computes and checks the
RFC 3230 Digest header. signer.go/verifier.go build the HTTP Signature
"signing string" over (request-target), host, date, digest. replay.go
rejects a signature seen twice inside the clock-skew window.

This package has no notion of actors or listeners - callers supply a
PublicKeyLookup (typically pkg/resolver's cache) and get back a Parsed
signature or an error classified by pkg/relayerr.
*/
package signature
