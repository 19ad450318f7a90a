package amadeus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/aretw0/tripwise/pkg/domain"
)

type offersResponse struct {
	Data []rawOffer `json:"data"`
}

type rawOffer struct {
	Price struct {
		Currency string `json:"currency"`
		Total    string `json:"total"`
	} `json:"price"`
	Itineraries []struct {
		Segments []rawSegment `json:"segments"`
	} `json:"itineraries"`
}

type rawSegment struct {
	CarrierCode string      `json:"carrierCode"`
	Departure   rawEndpoint `json:"departure"`
	Arrival     rawEndpoint `json:"arrival"`
}

type rawEndpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}

// FlightSearcher queries flight offers between two places.
type FlightSearcher struct {
	client   *Client
	tokens   TokenSource
	resolver *Resolver
}

// NewFlightSearcher creates a searcher. Place names are resolved through resolver.
func NewFlightSearcher(client *Client, tokens TokenSource, resolver *Resolver) *FlightSearcher {
	return &FlightSearcher{client: client, tokens: tokens, resolver: resolver}
}

// Search returns at most q.MaxResults offers. It never fails: every fault is
// reported through the Error field of the result.
func (s *FlightSearcher) Search(ctx context.Context, q domain.FlightSearch) (result domain.FlightSearchResult) {
	defer func() {
		if r := recover(); r != nil {
			s.client.logger.Error("flight search panicked", "panic", r)
			result = domain.FlightSearchResult{Error: fmt.Sprint(r)}
		}
	}()

	q = q.WithDefaults()
	origin := s.resolver.Resolve(ctx, q.Origin).Code
	dest := s.resolver.Resolve(ctx, q.Destination).Code
	if !origin.Valid() || !dest.Valid() {
		return domain.FlightSearchResult{Error: fmt.Sprintf("Invalid IATA: origin='%s', dest='%s'", origin, dest)}
	}

	query := url.Values{
		"originLocationCode":      {origin.String()},
		"destinationLocationCode": {dest.String()},
		"departureDate":           {q.DepartureDate},
		"adults":                  {strconv.Itoa(q.Adults)},
		"currencyCode":            {q.Currency},
		"max":                     {strconv.Itoa(q.MaxResults * 2)},
	}
	if q.ReturnDate != "" {
		query.Set("returnDate", q.ReturnDate)
	}

	resp, err := s.client.authorizedGet(ctx, s.tokens, s.client.cfg.SearchTimeout, offersPath, query)
	if err != nil {
		return domain.FlightSearchResult{Error: err.Error()}
	}
	if !resp.ok() {
		s.client.logger.Warn("offer search rejected", "status", resp.status, "origin", origin, "dest", dest)
		return domain.FlightSearchResult{Error: fmt.Sprintf("API %d: %s", resp.status, truncate(string(resp.body), 100))}
	}

	var or offersResponse
	if err := json.Unmarshal(resp.body, &or); err != nil {
		return domain.FlightSearchResult{Error: fmt.Sprintf("decode offers: %v", err)}
	}
	raw := or.Data
	if len(raw) > q.MaxResults {
		raw = raw[:q.MaxResults]
	}
	if len(raw) == 0 {
		return domain.FlightSearchResult{Info: domain.NoFlightsFound}
	}

	offers := make([]domain.FlightOffer, 0, len(raw))
	for i, o := range raw {
		offer, err := mapOffer(o)
		if err != nil {
			return domain.FlightSearchResult{Error: fmt.Sprintf("offer %d: %v", i, err)}
		}
		offers = append(offers, offer)
	}
	return domain.FlightSearchResult{Offers: offers}
}

func mapOffer(o rawOffer) (domain.FlightOffer, error) {
	if len(o.Itineraries) == 0 {
		return domain.FlightOffer{}, fmt.Errorf("no itineraries")
	}
	segs := o.Itineraries[0].Segments
	if len(segs) == 0 {
		return domain.FlightOffer{}, fmt.Errorf("no segments")
	}
	first, last := segs[0], segs[len(segs)-1]
	return domain.FlightOffer{
		Price:     o.Price.Currency + " " + o.Price.Total,
		Airline:   first.CarrierCode,
		Departure: first.Departure.IATACode,
		Arrival:   last.Arrival.IATACode,
		DepTime:   clockTime(first.Departure.At),
		ArrTime:   clockTime(last.Arrival.At),
		Stops:     len(segs) - 1,
	}, nil
}

// clockTime extracts HH:MM from an ISO-8601 timestamp such as 2025-12-01T08:35:00.
func clockTime(at string) string {
	if len(at) < 16 {
		if len(at) > 11 {
			return at[11:]
		}
		return ""
	}
	return at[11:16]
}
