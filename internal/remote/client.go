// Package remote is the typed client for the wizard API.
//
// A Client knows where the API lives. Authenticate turns a credential pair
// into a Session, and every operation hangs off that Session: there is no
// ambient credential state.
//
// Wire contract:
//
//	GET  /users/current                      authentication probe
//	GET  /wizards                            {"Wizards": [...], "Error": null}
//	GET  /wizards/{id}                       {"Wizard": {...}, "Error": null}
//	GET  /wizards/{id}/configuration         raw document
//	PUT  /wizards/{id}/configuration         raw document
//	GET  /wizards/{id}/event                 raw document
//	PUT  /wizards/{id}/event                 raw document
//	POST /wizards/configuration/validation   ["violation", ...]
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every remote call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	// Timeout bounds each HTTP call. Zero means DefaultTimeout.
	Timeout time.Duration

	// Logger receives debug traces of every call. Nil discards them.
	Logger *slog.Logger

	// HTTPClient overrides the HTTP client (tests). Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client addresses one API endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client for the API at host + base, for example
// "https://www.docwiz.nl/" and "api/".
func New(host, base string, opts Options) (*Client, error) {
	if host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid host %q: scheme must be http or https", host)
	}

	baseURL := strings.TrimRight(host, "/")
	if b := strings.Trim(base, "/"); b != "" {
		baseURL += "/" + b
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{baseURL: baseURL, http: httpClient, logger: logger}, nil
}

// BaseURL returns the API root all paths are appended to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticate probes the API with the credential pair. It returns a Session
// on 200, ErrUnauthorized on 401 and a *StatusError for anything else.
func (c *Client) Authenticate(ctx context.Context, user, secret string) (*Session, error) {
	s := newSession(c, user, secret)

	status, _, err := s.call(ctx, http.MethodGet, "/users/current", nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return s, nil
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, &StatusError{Method: http.MethodGet, URL: c.url("/users/current"), Code: status}
	}
}

// url builds the full URL for part, which must start with '/'.
func (c *Client) url(part string) string {
	return c.baseURL + part
}

// call performs one HTTP request and returns the status and full body.
// Only transport failures are returned as errors; status handling is left to
// the caller.
func (s *Session) call(ctx context.Context, method, part string, body []byte) (int, []byte, error) {
	target := s.client.url(part)
	s.client.logger.Debug(fmt.Sprintf(" -- %s :: %s", method, target))

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(s.user, s.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/xml")
	}

	resp, err := s.client.http.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Method: method, URL: target, Err: err}
	}

	return resp.StatusCode, data, nil
}

// expectOK maps non-200 statuses to errors.
func (s *Session) expectOK(method, part string, status int) error {
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return fmt.Errorf("%s %s: %w", method, s.client.url(part), ErrUnauthorized)
	default:
		return &StatusError{Method: method, URL: s.client.url(part), Code: status}
	}
}
