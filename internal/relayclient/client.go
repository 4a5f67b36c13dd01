// Package relayclient calls the relay's request/response endpoints.
package relayclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnexpectedStatus is wrapped when the relay answers with a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client talks to one relay over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client for the relay at baseURL (e.g. http://localhost:8000).
// A nil httpClient gets a default with a 5 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// ListClients returns the identifiers currently connected to the relay.
func (c *Client) ListClients(ctx context.Context) ([]string, error) {
	var body struct {
		Clients []string `json:"clients"`
	}
	if err := c.do(ctx, http.MethodGet, "/clients", &body); err != nil {
		return nil, err
	}
	return body.Clients, nil
}

// Send asks the relay to deliver message to identifier and returns the
// relay's acknowledgement. The relay acknowledges unknown identifiers too.
func (c *Client) Send(ctx context.Context, identifier, message string) (string, error) {
	path := "/send/" + url.PathEscape(identifier) + "?" + url.Values{"message": {message}}.Encode()

	var body struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, path, &body); err != nil {
		return "", err
	}
	return body.Message, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: %w: %d", method, path, ErrUnexpectedStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
