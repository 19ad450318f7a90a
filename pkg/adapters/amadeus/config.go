package amadeus

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Amadeus test environment.
const DefaultBaseURL = "https://test.api.amadeus.com"

const (
	tokenPath     = "/v1/security/oauth2/token"
	locationsPath = "/v1/reference-data/locations"
	offersPath    = "/v2/shopping/flight-offers"
)

// Default request settings.
const (
	DefaultTokenTimeout  = 10 * time.Second
	DefaultSearchTimeout = 15 * time.Second
	DefaultMaxTries      = 3
)

// Credentials identify the client in the client-credentials exchange.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Fingerprint returns a stable, non-reversible identifier for the credentials.
func (c Credentials) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.ClientID + "\x00" + c.ClientSecret))
	return hex.EncodeToString(sum[:8])
}

// Validate reports missing credential fields.
func (c Credentials) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ClientID) == "" {
		errs = append(errs, errors.New("client id is required"))
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		errs = append(errs, errors.New("client secret is required"))
	}
	return errors.Join(errs...)
}

// Config is the immutable provider configuration built once at startup.
type Config struct {
	BaseURL     string
	Credentials Credentials

	// TokenTimeout bounds the token and location calls.
	TokenTimeout time.Duration
	// SearchTimeout bounds the offer search call.
	SearchTimeout time.Duration

	// MaxTries is the number of attempts made for a call failing at the transport level.
	MaxTries uint
	// RetryInitialInterval is the first backoff delay. Zero uses the backoff default.
	RetryInitialInterval time.Duration

	HTTPClient *http.Client
}

// Validate reports configuration that cannot be used.
func (c Config) Validate() error {
	var errs []error
	if err := c.Credentials.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, errors.New("base url must be absolute"))
		}
	}
	return errors.Join(errs...)
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.TokenTimeout <= 0 {
		c.TokenTimeout = DefaultTokenTimeout
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = DefaultSearchTimeout
	}
	if c.MaxTries == 0 {
		c.MaxTries = DefaultMaxTries
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	return c
}
