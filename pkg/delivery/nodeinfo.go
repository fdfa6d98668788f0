package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cuemby/relay/pkg/relayerr"
)

// nodeInfoDoc is the subset of a NodeInfo 2.x document this relay persists
// (spec.md §4.H QueryNodeInfo).
type nodeInfoDoc struct {
	Software struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"software"`
	OpenRegistrations bool `json:"openRegistrations"`
}

type nodeInfoDiscovery struct {
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// fetchNodeInfo follows the two-step NodeInfo discovery dance: fetch
// /.well-known/nodeinfo, take the last advertised link, then fetch that
// document. Link rel versions are not compared.
func fetchNodeInfo(ctx context.Context, client *http.Client, host string) (*nodeInfoDoc, error) {
	discoveryURL := fmt.Sprintf("https://%s/.well-known/nodeinfo", host)
	body, err := getBounded(ctx, client, discoveryURL)
	if err != nil {
		return nil, err
	}

	var discovery nodeInfoDiscovery
	if err := json.Unmarshal(body, &discovery); err != nil {
		return nil, relayerr.New(relayerr.NetworkPermanent, fmt.Errorf("decode nodeinfo discovery: %w", err))
	}
	if len(discovery.Links) == 0 {
		return nil, relayerr.Newf(relayerr.NetworkPermanent, "%s: no nodeinfo links advertised", host)
	}

	docURL := discovery.Links[len(discovery.Links)-1].Href
	docBody, err := getBounded(ctx, client, docURL)
	if err != nil {
		return nil, err
	}

	var doc nodeInfoDoc
	if err := json.Unmarshal(docBody, &doc); err != nil {
		return nil, relayerr.New(relayerr.NetworkPermanent, fmt.Errorf("decode nodeinfo document: %w", err))
	}
	return &doc, nil
}

// instanceMeta is the best-effort subset of Mastodon-style /api/v1/instance
// metadata this relay stores alongside NodeInfo (spec.md §4.H QueryInstance).
type instanceMeta struct {
	Description  string `json:"description"`
	ContactEmail string `json:"email"`
}

func fetchInstanceMeta(ctx context.Context, client *http.Client, host string) (*instanceMeta, error) {
	url := fmt.Sprintf("https://%s/api/v1/instance", host)
	body, err := getBounded(ctx, client, url)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Description string `json:"description"`
		Email       string `json:"email"`
		Contact     struct {
			Email string `json:"email"`
		} `json:"contact_account"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, relayerr.New(relayerr.NetworkPermanent, fmt.Errorf("decode instance metadata: %w", err))
	}
	email := raw.Email
	if email == "" {
		email = raw.Contact.Email
	}
	return &instanceMeta{Description: raw.Description, ContactEmail: email}, nil
}

func getBounded(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, relayerr.New(relayerr.MalformedActivity, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, relayerr.New(relayerr.NetworkTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, relayerr.New(relayerr.NetworkTransient, err)
	}
	if resp.StatusCode >= 500 {
		return nil, relayerr.Newf(relayerr.NetworkTransient, "GET %s: status %d", url, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, relayerr.Newf(relayerr.NetworkPermanent, "GET %s: status %d", url, resp.StatusCode)
	}
	return body, nil
}
