// Package adminclient is the CLI's HTTP client for the relay's admin API
// (spec.md §6: POST /api/v1/admin/{blocks,allows,listeners}, bearer-token
// authenticated). It wraps an *http.Client the way the teacher's pkg/client
// wraps a gRPC connection, trading mTLS + generated stubs for a bearer
// token and hand-rolled JSON request/response types.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const requestTimeout = 10 * time.Second

// Client talks to one relay's admin API over HTTP.
type Client struct {
	addr   string
	token  string
	client *http.Client
}

// New constructs a Client for the relay listening at addr (e.g.
// "https://relay.example") using token as the bearer credential.
func New(addr, token string) *Client {
	return &Client{addr: addr, token: token, client: http.DefaultClient}
}

// domainListResponse is the admin API's listing of a block or allow list.
type domainListResponse struct {
	Domains []string `json:"domains"`
}

type domainMutationRequest struct {
	Domain string `json:"domain"`
	Remove bool   `json:"remove"`
}

// ListBlocks returns every domain currently on the block list.
func (c *Client) ListBlocks(ctx context.Context) ([]string, error) {
	var resp domainListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/blocks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Domains, nil
}

// AddBlock adds domain to the block list.
func (c *Client) AddBlock(ctx context.Context, domain string) error {
	return c.mutateDomain(ctx, "/api/v1/admin/blocks", domain, false)
}

// RemoveBlock removes domain from the block list.
func (c *Client) RemoveBlock(ctx context.Context, domain string) error {
	return c.mutateDomain(ctx, "/api/v1/admin/blocks", domain, true)
}

// ListAllows returns every domain currently on the allow list.
func (c *Client) ListAllows(ctx context.Context) ([]string, error) {
	var resp domainListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/allows", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Domains, nil
}

// AddAllow adds domain to the allow list.
func (c *Client) AddAllow(ctx context.Context, domain string) error {
	return c.mutateDomain(ctx, "/api/v1/admin/allows", domain, false)
}

// RemoveAllow removes domain from the allow list.
func (c *Client) RemoveAllow(ctx context.Context, domain string) error {
	return c.mutateDomain(ctx, "/api/v1/admin/allows", domain, true)
}

func (c *Client) mutateDomain(ctx context.Context, path, domain string, remove bool) error {
	req := domainMutationRequest{Domain: domain, Remove: remove}
	return c.do(ctx, http.MethodPost, path, req, nil)
}

// Listener summarizes one connected server, as returned by the admin API.
type Listener struct {
	ActorIRI     string  `json:"actor_iri"`
	InboxIRI     string  `json:"inbox_iri"`
	CreatedAt    string  `json:"created_at"`
	LastOnlineAt *string `json:"last_online_at,omitempty"`
}

type listenerListResponse struct {
	Listeners []Listener `json:"listeners"`
}

type listenerMutationRequest struct {
	ActorIRI string `json:"actor_iri"`
	Remove   bool   `json:"remove"`
}

// ListListeners returns every server currently connected to the relay.
func (c *Client) ListListeners(ctx context.Context) ([]Listener, error) {
	var resp listenerListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/listeners", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Listeners, nil
}

// RemoveListener forcibly disconnects actorIRI, bypassing the Follow/Undo
// handshake (spec.md §4.E) — the operator's escape hatch.
func (c *Client) RemoveListener(ctx context.Context, actorIRI string) error {
	req := listenerMutationRequest{ActorIRI: actorIRI, Remove: true}
	return c.do(ctx, http.MethodPost, "/api/v1/admin/listeners", req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.addr+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("admin request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("admin request to %s: unauthorized, check API_TOKEN", path)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("admin request to %s: unexpected status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
