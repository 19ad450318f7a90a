package amadeus

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

// AuthError reports a failed client-credentials exchange.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	}
	return fmt.Sprintf("token exchange failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Token is a bearer token and its advertised lifetime.
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// TokenSource hands out bearer tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops any token held, forcing the next call to re-authenticate.
	Invalidate()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// FetchToken performs the client-credentials exchange.
// Every failure is returned as an *AuthError.
func (c *Client) FetchToken(ctx context.Context) (Token, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.Credentials.ClientID},
		"client_secret": {c.cfg.Credentials.ClientSecret},
	}
	encoded := form.Encode()

	resp, err := c.send(ctx, c.cfg.TokenTimeout, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+tokenPath, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return Token{}, &AuthError{Err: err}
	}
	if !resp.ok() {
		return Token{}, &AuthError{StatusCode: resp.status, Body: truncate(string(resp.body), 100)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return Token{}, &AuthError{StatusCode: resp.status, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return Token{}, &AuthError{StatusCode: resp.status, Err: errors.New("response has no access_token")}
	}
	return Token{AccessToken: tr.AccessToken, ExpiresIn: time.Duration(tr.ExpiresIn) * time.Second}, nil
}

// Tokens returns a TokenSource that re-authenticates on every call.
func (c *Client) Tokens() TokenSource {
	return fetchEveryTime{client: c}
}

type fetchEveryTime struct {
	client *Client
}

func (f fetchEveryTime) Token(ctx context.Context) (string, error) {
	tok, err := f.client.FetchToken(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (fetchEveryTime) Invalidate() {}
