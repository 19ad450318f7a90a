package amadeus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aretw0/tripwise/internal/logging"
	"github.com/cenkalti/backoff/v5"
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 4 << 20

// Client talks to the provider over HTTP.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for the client and the components built on it.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a provider client. Zero fields of cfg take their defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg.withDefaults(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fingerprint identifies the credentials used by this client.
func (c *Client) Fingerprint() string {
	return c.cfg.Credentials.Fingerprint()
}

type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// send executes the request produced by build, retrying transport faults.
// The timeout covers every attempt of the call.
func (c *Client) send(ctx context.Context, timeout time.Duration, build func(context.Context) (*http.Request, error)) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempt := 0
	op := func() (*response, error) {
		attempt++
		req, err := build(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.cfg.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return &response{status: resp.StatusCode, body: body}, nil
	}

	b := backoff.NewExponentialBackOff()
	if c.cfg.RetryInitialInterval > 0 {
		b.InitialInterval = c.cfg.RetryInitialInterval
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.cfg.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("provider call failed, retrying", "attempt", attempt, "next", next, "err", err)
		}),
	)
}

func (c *Client) get(ctx context.Context, timeout time.Duration, path string, query url.Values, token string) (*response, error) {
	return c.send(ctx, timeout, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

// authorizedGet issues a GET with a token from tokens.
// A 401 answer invalidates the token and the call is repeated once with a fresh one.
func (c *Client) authorizedGet(ctx context.Context, tokens TokenSource, timeout time.Duration, path string, query url.Values) (*response, error) {
	token, err := tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.get(ctx, timeout, path, query, token)
	if err != nil || resp.status != http.StatusUnauthorized {
		return resp, err
	}

	c.logger.Debug("provider rejected token, refreshing", "path", path)
	tokens.Invalidate()
	token, err = tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, timeout, path, query, token)
}

// truncate returns at most n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
