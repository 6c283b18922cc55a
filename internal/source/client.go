// Package source implements the upstream analytics API clients (GA4, Search
// Console, YouTube, Facebook, Instagram, LinkedIn). All methods are
// context-aware, share a per-source rate limiter, and retry on transient
// errors (429, 5xx). Authentication failures are never retried and are
// reported with ErrAuth so callers can treat them as fatal.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultBackoff = 500 * time.Millisecond
	userAgent      = "pulse/1.0"
)

var (
	// ErrAuth marks an authentication or authorization failure: an expired
	// or revoked token, missing credentials, or HTTP 401/403.
	ErrAuth = errors.New("authentication failed")

	// ErrUnknownMetric marks a metric or dimension a source cannot serve.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrNotConfigured marks a source whose credentials were never set.
	ErrNotConfigured = errors.New("source not configured")
)

// IsAuth reports whether err is an authentication failure, including OAuth
// refresh-token failures surfaced by the oauth2 transport.
func IsAuth(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuth) {
		return true
	}
	var re *oauth2.RetrieveError
	return errors.As(err, &re)
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Status  int
	Message string
	auth    bool
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// Is lets errors.Is(err, ErrAuth) match auth failures.
func (e *StatusError) Is(target error) bool {
	return target == ErrAuth && e.auth
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Name       string
	HTTPClient *http.Client // nil = plain client with Timeout
	Timeout    time.Duration
	Rate       float64 // requests per second; <= 0 means unlimited
	Retries    int     // extra attempts after the first; < 0 means 0
	Backoff    time.Duration
	Header     http.Header // sent with every request
	Secrets    []string    // redacted from debug logs
	Debug      bool
}

// Client is the shared HTTP JSON client every source is built on.
type Client struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	backoff    time.Duration
	header     http.Header
	secrets    []string
	debug      bool
}

// NewClient creates a Client from opts.
func NewClient(opts ClientOptions) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Rate > 0 {
		burst := int(opts.Rate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Client{
		name:       opts.Name,
		httpClient: hc,
		limiter:    limiter,
		retries:    retries,
		backoff:    backoff,
		header:     opts.Header,
		secrets:    opts.Secrets,
		debug:      opts.Debug,
	}
}

// Name returns the source name the client was created for.
func (c *Client) Name() string { return c.name }

// ─── Requests ─────────────────────────────────────────────────────────────────

// Get performs a GET to rawURL and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, rawURL string, out interface{}) error {
	return c.do(ctx, http.MethodGet, rawURL, nil, out)
}

// Post performs a POST of body (JSON-encoded) to rawURL and decodes the JSON
// response into out.
func (c *Client) Post(ctx context.Context, rawURL string, body, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, http.MethodPost, rawURL, b, out)
}

// WithQuery appends params to base.
func WithQuery(base string, params url.Values) string {
	if len(params) == 0 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params.Encode()
}

// ─── Low-level HTTP ───────────────────────────────────────────────────────────

// do performs one request, handling rate limiting and retries.
func (c *Client) do(ctx context.Context, method, reqURL string, body []byte, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if c.debug {
		slog.Debug("upstream request", "source", c.name, "method", method, "url", c.redact(reqURL))
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoff
			slog.Debug("retrying after backoff", "source", c.name, "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, rdr)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, vs := range c.header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if IsAuth(err) {
				return fmt.Errorf("%w: %s", ErrAuth, c.redact(err.Error()))
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http: %s", c.redact(err.Error()))
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading body: %w", err)
			continue
		}

		if c.debug {
			slog.Debug("upstream response", "source", c.name, "status", resp.StatusCode, "bytes", len(data))
		}

		// Retry on server errors and rate limiting
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = c.statusError(resp.StatusCode, data)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return c.statusError(resp.StatusCode, data)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("after %d attempts: %w", c.retries+1, lastErr)
}

// apiError covers the error envelopes of Google APIs, the Graph API, and
// LinkedIn's REST API.
type apiError struct {
	Error json.RawMessage `json:"error"`
	// LinkedIn
	Message     string `json:"message"`
	ServiceCode int    `json:"serviceErrorCode"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Status  string `json:"status"` // Google: UNAUTHENTICATED, PERMISSION_DENIED
	Type    string `json:"type"`   // Graph: OAuthException
	Code    int    `json:"code"`   // Graph: 190 = invalid or expired token
}

// statusError converts a non-2xx response into a *StatusError, classifying
// authentication failures.
func (c *Client) statusError(status int, body []byte) error {
	se := &StatusError{Status: status}
	var env apiError
	if json.Unmarshal(body, &env) == nil {
		var inner apiErrorBody
		switch {
		case len(env.Error) > 0 && json.Unmarshal(env.Error, &inner) == nil:
			se.Message = inner.Message
			if inner.Status == "UNAUTHENTICATED" || inner.Code == 190 {
				se.auth = true
			}
		case len(env.Error) > 0:
			// OAuth token endpoint: {"error":"invalid_grant", ...}
			var code string
			_ = json.Unmarshal(env.Error, &code)
			se.Message = code
			if code == "invalid_grant" || code == "invalid_client" {
				se.auth = true
			}
		case env.Message != "":
			se.Message = env.Message
		}
	}
	if se.Message == "" {
		se.Message = truncate(strings.TrimSpace(string(body)), 200)
	}
	se.Message = c.redact(se.Message)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		se.auth = true
	}
	return se
}

// redact replaces every configured secret in s.
func (c *Client) redact(s string) string {
	for _, secret := range c.secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "REDACTED")
		}
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
