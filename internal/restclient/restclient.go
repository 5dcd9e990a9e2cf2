// Package restclient is the JSON-over-HTTP plumbing shared by the catalog,
// scaffolder and orchestrator clients.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"golang.org/x/oauth2"
)

const maxErrorBody = 4096

// Client sends authenticated JSON requests to one service.
type Client struct {
	service string
	baseURL string
	http    *http.Client
}

// New returns a client for service rooted at baseURL. A non-empty token is
// sent as a bearer token on every request.
func New(ctx context.Context, service, baseURL, token string) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		httpClient.Timeout = 30 * time.Second
	}

	return &Client{
		service: service,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

// WithHTTPClient replaces the underlying http client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Service names the remote service in errors.
func (c *Client) Service() string {
	return c.service
}

// NewRequest builds a request for path relative to the base url.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", c.service, err)
		}

		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// Send performs req and returns the response when it has a 2xx status.
// Other statuses are turned into a *model.UpstreamError carrying the body.
func (c *Client) Send(req *http.Request) (*http.Response, error) {
	return c.send(c.http, req)
}

// SendStream is Send without the client timeout, for long-lived responses.
func (c *Client) SendStream(req *http.Request) (*http.Response, error) {
	streaming := *c.http
	streaming.Timeout = 0

	return c.send(&streaming, req)
}

func (c *Client) send(hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &model.UpstreamError{Service: c.service, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return nil, &model.UpstreamError{
		Service:    c.service,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(data)),
	}
}

// Do sends a JSON request and decodes a JSON response into out when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.Send(req)
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode %s response: %w", c.service, err)
	}

	return nil
}
