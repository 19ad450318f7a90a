package amadeus_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/tripwise/pkg/adapters/amadeus"
)

// fakeProvider is an in-process stand-in for the Amadeus endpoints.
type fakeProvider struct {
	srv *httptest.Server

	tokenCalls    atomic.Int32
	locationCalls atomic.Int32
	offerCalls    atomic.Int32

	mu             sync.Mutex
	tokenStatus    int
	expiresIn      int
	locations      map[string][]map[string]string
	locationStatus int
	offerStatus    int
	offerBody      string
	offerQuery     url.Values
	rejectTokens   map[string]bool
	lastForm       url.Values
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{
		tokenStatus:    http.StatusOK,
		expiresIn:      1799,
		locations:      map[string][]map[string]string{},
		locationStatus: http.StatusOK,
		offerStatus:    http.StatusOK,
		offerBody:      `{"data":[]}`,
		rejectTokens:   map[string]bool{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/security/oauth2/token", p.handleToken)
	mux.HandleFunc("GET /v1/reference-data/locations", p.handleLocations)
	mux.HandleFunc("GET /v2/shopping/flight-offers", p.handleOffers)
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) client(opts ...func(*amadeus.Config)) *amadeus.Client {
	cfg := amadeus.Config{
		BaseURL:              p.srv.URL,
		Credentials:          amadeus.Credentials{ClientID: "id", ClientSecret: "secret"},
		TokenTimeout:         2 * time.Second,
		SearchTimeout:        2 * time.Second,
		RetryInitialInterval: time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return amadeus.NewClient(cfg)
}

func (p *fakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	n := p.tokenCalls.Add(1)
	_ = r.ParseForm()
	p.mu.Lock()
	p.lastForm = r.PostForm
	status, expires := p.tokenStatus, p.expiresIn
	p.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, `{"error":"invalid_client"}`, status)
		return
	}
	writeJSON(w, map[string]any{
		"access_token": fmt.Sprintf("tok-%d", n),
		"token_type":   "Bearer",
		"expires_in":   expires,
	})
}

func (p *fakeProvider) authorized(w http.ResponseWriter, r *http.Request) bool {
	token := r.Header.Get("Authorization")
	p.mu.Lock()
	rejected := p.rejectTokens[token]
	p.mu.Unlock()
	if rejected {
		http.Error(w, `{"errors":[{"code":38190}]}`, http.StatusUnauthorized)
		return false
	}
	return true
}

func (p *fakeProvider) handleLocations(w http.ResponseWriter, r *http.Request) {
	p.locationCalls.Add(1)
	if !p.authorized(w, r) {
		return
	}
	p.mu.Lock()
	status := p.locationStatus
	data := p.locations[r.URL.Query().Get("keyword")]
	p.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, "unavailable", status)
		return
	}
	if data == nil {
		data = []map[string]string{}
	}
	writeJSON(w, map[string]any{"data": data})
}

func (p *fakeProvider) handleOffers(w http.ResponseWriter, r *http.Request) {
	p.offerCalls.Add(1)
	if !p.authorized(w, r) {
		return
	}
	p.mu.Lock()
	p.offerQuery = r.URL.Query()
	status, body := p.offerStatus, p.offerBody
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (p *fakeProvider) setLocation(keyword string, entries ...map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locations[keyword] = entries
}

func (p *fakeProvider) setOffers(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offerStatus, p.offerBody = status, body
}

func city(code string) map[string]string    { return map[string]string{"subType": "CITY", "iataCode": code} }
func airport(code string) map[string]string { return map[string]string{"subType": "AIRPORT", "iataCode": code} }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// twoSegmentOffers builds n offers, each with a connection.
func twoSegmentOffers(n int) string {
	offers := make([]map[string]any, n)
	for i := range offers {
		offers[i] = map[string]any{
			"price": map[string]any{"currency": "EUR", "total": fmt.Sprintf("%d.50", 100+i)},
			"itineraries": []any{map[string]any{
				"segments": []any{
					map[string]any{
						"carrierCode": "AF",
						"departure":   map[string]any{"iataCode": "CDG", "at": "2025-12-01T08:35:00"},
						"arrival":     map[string]any{"iataCode": "MXP", "at": "2025-12-01T10:05:00"},
					},
					map[string]any{
						"carrierCode": "AZ",
						"departure":   map[string]any{"iataCode": "MXP", "at": "2025-12-01T11:00:00"},
						"arrival":     map[string]any{"iataCode": "FCO", "at": "2025-12-01T12:10:00"},
					},
				},
			}},
		}
	}
	b, _ := json.Marshal(map[string]any{"data": offers})
	return string(b)
}

// flakyTransport fails the first n round trips at the transport level.
type flakyTransport struct {
	remaining atomic.Int32
	calls     atomic.Int32
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	f.calls.Add(1)
	if f.remaining.Add(-1) >= 0 {
		return nil, errors.New("connection reset by peer")
	}
	return http.DefaultTransport.RoundTrip(r)
}

// refusingTransport fails every round trip.
type refusingTransport struct{}

func (refusingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func (p *fakeProvider) lastOfferQuery() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offerQuery
}

func (p *fakeProvider) lastTokenForm() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastForm
}
