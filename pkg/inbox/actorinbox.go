package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cuemby/relay/pkg/relayerr"
)

// actorEndpoints is the subset of an actor document needed to address
// deliveries: prefer the shared inbox, fall back to the per-actor inbox.
type actorEndpoints struct {
	Inbox     string `json:"inbox"`
	Endpoints struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
}

// fetchInboxIRI fetches actorIRI's document and returns its preferred
// delivery address (spec.md §3 Listener: "inbox_iri (preferably
// sharedInbox)").
func fetchInboxIRI(ctx context.Context, client *http.Client, actorIRI string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, actorIRI, nil)
	if err != nil {
		return "", relayerr.New(relayerr.MalformedActivity, err)
	}
	req.Header.Set("Accept", `application/activity+json, application/ld+json`)

	resp, err := client.Do(req)
	if err != nil {
		return "", relayerr.New(relayerr.NetworkTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", relayerr.New(relayerr.NetworkTransient, err)
	}
	if resp.StatusCode >= 500 {
		return "", relayerr.Newf(relayerr.NetworkTransient, "fetch actor %s: status %d", actorIRI, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return "", relayerr.Newf(relayerr.NetworkPermanent, "fetch actor %s: status %d", actorIRI, resp.StatusCode)
	}

	var doc actorEndpoints
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", relayerr.New(relayerr.NetworkPermanent, fmt.Errorf("decode actor document: %w", err))
	}

	if doc.Endpoints.SharedInbox != "" {
		return doc.Endpoints.SharedInbox, nil
	}
	if doc.Inbox != "" {
		return doc.Inbox, nil
	}
	return "", relayerr.Newf(relayerr.NetworkPermanent, "actor %s has no inbox or sharedInbox", actorIRI)
}
