// Package shortener calls an external link-shortening endpoint. The contract
// never depends on it succeeding: on any failure the caller uses the long
// URL unmodified.
package shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUpstreamUnavailable reports that the shortening endpoint failed or
// answered with an error; the long URL remains valid.
var ErrUpstreamUnavailable = errors.New("link shortener unavailable")

// Client shortens URLs through a single upstream endpoint.
// The zero value is unusable; use New.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// New creates a Client for the given endpoint. An empty endpoint disables
// shortening entirely: Shorten then always falls back. The token, when set,
// is sent as a bearer credential.
func New(endpoint, token string) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type shortenRequest struct {
	LongURL string `json:"long_url"`
}

type shortenResponse struct {
	Link  string `json:"link"`
	Error string `json:"error"`
}

// Shorten asks the upstream for a short link for longURL. It returns the
// short link on success and (longURL, error wrapping ErrUpstreamUnavailable)
// on any failure, so callers can use the first return value unconditionally.
func (c *Client) Shorten(ctx context.Context, longURL string) (string, error) {
	if !strings.HasPrefix(longURL, "http") {
		return longURL, fmt.Errorf("%w: invalid long_url", ErrUpstreamUnavailable)
	}
	if c.endpoint == "" {
		return longURL, fmt.Errorf("%w: no endpoint configured", ErrUpstreamUnavailable)
	}

	body, err := json.Marshal(shortenRequest{LongURL: longURL})
	if err != nil {
		return longURL, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return longURL, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return longURL, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	var parsed shortenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return longURL, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Error
		if msg == "" {
			msg = resp.Status
		}
		return longURL, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, msg)
	}
	if parsed.Link == "" {
		return longURL, fmt.Errorf("%w: empty link in response", ErrUpstreamUnavailable)
	}

	return parsed.Link, nil
}
