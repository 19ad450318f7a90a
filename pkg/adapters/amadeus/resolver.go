package amadeus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/aretw0/tripwise/pkg/domain"
)

type locationsResponse struct {
	Data []struct {
		SubType  string `json:"subType"`
		IATACode string `json:"iataCode"`
	} `json:"data"`
}

// Resolver maps place names to IATA codes.
type Resolver struct {
	client *Client
	tokens TokenSource
}

// NewResolver creates a resolver using tokens for authorization.
func NewResolver(client *Client, tokens TokenSource) *Resolver {
	return &Resolver{client: client, tokens: tokens}
}

// Resolve returns the code for place. It never fails: input too short to
// search, an empty answer, or any fault yields domain.FallbackIATACode.
func (r *Resolver) Resolve(ctx context.Context, place string) domain.Resolution {
	trimmed := strings.TrimSpace(place)
	if len([]rune(trimmed)) < 2 {
		return fallback(trimmed)
	}

	res, err := r.lookup(ctx, trimmed)
	if err != nil {
		r.client.logger.Warn("location lookup failed, using fallback", "place", trimmed, "err", err)
		return fallback(trimmed)
	}
	r.client.logger.Debug("resolved location", "place", trimmed, "iata", res.Code, "provenance", res.Provenance)
	return res
}

func (r *Resolver) lookup(ctx context.Context, place string) (domain.Resolution, error) {
	query := url.Values{
		"keyword": {place},
		"subType": {"CITY,AIRPORT"},
		"view":    {"LIGHT"},
	}
	resp, err := r.client.authorizedGet(ctx, r.tokens, r.client.cfg.TokenTimeout, locationsPath, query)
	if err != nil {
		return domain.Resolution{}, err
	}
	if !resp.ok() {
		return domain.Resolution{}, fmt.Errorf("locations: status %d", resp.status)
	}

	var lr locationsResponse
	if err := json.Unmarshal(resp.body, &lr); err != nil {
		return domain.Resolution{}, fmt.Errorf("decode locations: %w", err)
	}
	if len(lr.Data) == 0 {
		return fallback(place), nil
	}
	for _, loc := range lr.Data {
		if loc.SubType == "CITY" {
			return domain.Resolution{Code: domain.IATACode(loc.IATACode), Provenance: domain.ProvenanceCity}, nil
		}
	}
	first := lr.Data[0]
	prov := domain.ProvenanceAirport
	if first.SubType != "AIRPORT" {
		prov = domain.Provenance(strings.ToLower(first.SubType))
	}
	return domain.Resolution{Code: domain.IATACode(first.IATACode), Provenance: prov}, nil
}

func fallback(place string) domain.Resolution {
	return domain.Resolution{Code: domain.FallbackIATACode(place), Provenance: domain.ProvenanceFallback}
}
