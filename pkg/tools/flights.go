package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// SearchFlightsName is the name models use to call the flight search tool.
const SearchFlightsName = "search_flights"

// FlightSearcher runs a flight offer query.
type FlightSearcher interface {
	Search(ctx context.Context, q domain.FlightSearch) domain.FlightSearchResult
}

// SearchFlights exposes a FlightSearcher to models.
type SearchFlights struct {
	searcher FlightSearcher
}

// NewSearchFlights creates the flight search tool.
func NewSearchFlights(searcher FlightSearcher) *SearchFlights {
	return &SearchFlights{searcher: searcher}
}

func (t *SearchFlights) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        SearchFlightsName,
		Description: "Search flight offers between two places. Place names may be city names or IATA codes.",
		Parameters: map[string]any{
			"origin":         map[string]any{"type": "string", "description": "Departure city or airport"},
			"destination":    map[string]any{"type": "string", "description": "Arrival city or airport"},
			"departure_date": map[string]any{"type": "string", "description": "Departure date, YYYY-MM-DD"},
			"return_date":    map[string]any{"type": "string", "description": "Return date, YYYY-MM-DD. Omit for one-way"},
			"adults":         map[string]any{"type": "integer", "description": "Number of adult travellers", "default": domain.DefaultAdults},
			"currency":       map[string]any{"type": "string", "description": "ISO 4217 currency code", "default": domain.DefaultCurrency},
			"max_results":    map[string]any{"type": "integer", "description": "Maximum offers to return", "default": domain.DefaultMaxResults},
		},
		Required: []string{"origin", "destination", "departure_date"},
	}
}

// Invoke decodes the model arguments and runs the search.
// Argument problems are returned as error records like any other search failure.
func (t *SearchFlights) Invoke(ctx context.Context, raw json.RawMessage) domain.ToolResult {
	q, err := DecodeFlightSearch(raw)
	if err != nil {
		return flightResult(domain.FlightSearchResult{Error: err.Error()})
	}
	return flightResult(t.searcher.Search(ctx, q))
}

func flightResult(res domain.FlightSearchResult) domain.ToolResult {
	return domain.ToolResult{Result: res, IsError: res.Failed(), Error: res.Error}
}

// DecodeFlightSearch parses tool arguments into a FlightSearch.
// Numbers given as strings are accepted.
func DecodeFlightSearch(raw json.RawMessage) (domain.FlightSearch, error) {
	var args map[string]any
	if len(raw) == 0 {
		args = map[string]any{}
	} else if err := json.Unmarshal(raw, &args); err != nil {
		return domain.FlightSearch{}, fmt.Errorf("invalid arguments: %w", err)
	}

	var q domain.FlightSearch
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &q,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return domain.FlightSearch{}, err
	}
	if err := dec.Decode(args); err != nil {
		return domain.FlightSearch{}, fmt.Errorf("invalid arguments: %w", err)
	}

	var missing []string
	if strings.TrimSpace(q.Origin) == "" {
		missing = append(missing, "origin")
	}
	if strings.TrimSpace(q.Destination) == "" {
		missing = append(missing, "destination")
	}
	if strings.TrimSpace(q.DepartureDate) == "" {
		missing = append(missing, "departure_date")
	}
	if len(missing) > 0 {
		return domain.FlightSearch{}, fmt.Errorf("missing required arguments: %s", strings.Join(missing, ", "))
	}
	return q, nil
}
