package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cuemby/relay/pkg/relayerr"
)

// Document is the subset of a remote actor document this relay cares
// about.
type Document struct {
	ActorIRI     string
	PublicKeyID  string
	PublicKeyPEM string
}

type actorDocument struct {
	ID        string `json:"id"`
	PublicKey struct {
		ID           string `json:"id"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// HTTPFetcher fetches actor documents over HTTP(S), the production
// Fetcher implementation.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher wraps client, defaulting to http.DefaultClient's shape
// when nil (always supply a pooled client in production; spec.md §5 calls
// for a shared, bounded outbound connection pool).
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client}
}

// FetchActor GETs keyId (actor documents conventionally publish their key
// at a fragment of the actor IRI, so requesting keyId itself resolves to
// the owning actor) and extracts its publicKey block.
func (f *HTTPFetcher) FetchActor(ctx context.Context, keyID string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stripFragment(keyID), nil)
	if err != nil {
		return nil, relayerr.New(relayerr.MalformedActivity, err)
	}
	req.Header.Set("Accept", `application/activity+json, application/ld+json`)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, relayerr.New(relayerr.NetworkTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, relayerr.New(relayerr.NetworkTransient, err)
	}

	if resp.StatusCode >= 500 {
		return nil, relayerr.Newf(relayerr.NetworkTransient, "fetch actor %s: status %d", keyID, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, relayerr.Newf(relayerr.NetworkPermanent, "fetch actor %s: status %d", keyID, resp.StatusCode)
	}

	var doc actorDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, relayerr.New(relayerr.NetworkPermanent, fmt.Errorf("decode actor document: %w", err))
	}
	if doc.ID == "" || doc.PublicKey.PublicKeyPem == "" {
		return nil, relayerr.Newf(relayerr.NetworkPermanent, "actor document at %s missing id or publicKey", keyID)
	}
	if doc.PublicKey.ID == "" {
		doc.PublicKey.ID = keyID
	}

	return &Document{
		ActorIRI:     doc.ID,
		PublicKeyID:  doc.PublicKey.ID,
		PublicKeyPEM: doc.PublicKey.PublicKeyPem,
	}, nil
}

func stripFragment(iri string) string {
	for i, r := range iri {
		if r == '#' {
			return iri[:i]
		}
	}
	return iri
}
