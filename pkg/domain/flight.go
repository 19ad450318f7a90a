package domain

import (
	"encoding/json"
	"strings"
	"unicode"
)

// IATACode is a location code as issued by the travel provider.
// Valid codes are exactly three characters long.
type IATACode string

// Valid reports whether the code has the three characters the offer search requires.
func (c IATACode) Valid() bool {
	return len([]rune(string(c))) == 3
}

func (c IATACode) String() string {
	return string(c)
}

// Provenance records how a code was obtained. It is informational only.
type Provenance string

const (
	ProvenanceCity     Provenance = "city"
	ProvenanceAirport  Provenance = "airport"
	ProvenanceFallback Provenance = "fallback"
)

// Resolution is a code together with where it came from.
type Resolution struct {
	Code       IATACode
	Provenance Provenance
}

// FallbackIATACode derives a code from free text by taking the first three
// characters of the trimmed input and upper-casing them.
func FallbackIATACode(place string) IATACode {
	runes := []rune(strings.TrimSpace(place))
	if len(runes) > 3 {
		runes = runes[:3]
	}
	for i, r := range runes {
		runes[i] = unicode.ToUpper(r)
	}
	return IATACode(runes)
}

// FlightOffer is one normalized flight option.
type FlightOffer struct {
	Price     string `json:"price"`
	Airline   string `json:"airline"`
	Departure string `json:"departure"`
	Arrival   string `json:"arrival"`
	DepTime   string `json:"dep_time"`
	ArrTime   string `json:"arr_time"`
	Stops     int    `json:"stops"`
}

// FlightSearch holds the inputs of a flight offer query.
type FlightSearch struct {
	Origin        string `json:"origin" mapstructure:"origin"`
	Destination   string `json:"destination" mapstructure:"destination"`
	DepartureDate string `json:"departure_date" mapstructure:"departure_date"`
	ReturnDate    string `json:"return_date,omitempty" mapstructure:"return_date"`
	Adults        int    `json:"adults,omitempty" mapstructure:"adults"`
	Currency      string `json:"currency,omitempty" mapstructure:"currency"`
	MaxResults    int    `json:"max_results,omitempty" mapstructure:"max_results"`
}

// Search defaults applied when a field is left at its zero value.
const (
	DefaultAdults     = 1
	DefaultCurrency   = "INR"
	DefaultMaxResults = 3
)

// WithDefaults returns a copy of the search with zero fields filled in.
func (s FlightSearch) WithDefaults() FlightSearch {
	if s.Adults <= 0 {
		s.Adults = DefaultAdults
	}
	if strings.TrimSpace(s.Currency) == "" {
		s.Currency = DefaultCurrency
	}
	if s.MaxResults <= 0 {
		s.MaxResults = DefaultMaxResults
	}
	return s
}

// NoFlightsFound is the info message returned for an empty offer list.
const NoFlightsFound = "No flights found"

// FlightSearchResult is the outcome of a flight search.
// Exactly one of Offers, Error or Info is meaningful.
type FlightSearchResult struct {
	Offers []FlightOffer
	Error  string
	Info   string
}

// Failed reports whether the search ended in an error record.
func (r FlightSearchResult) Failed() bool {
	return r.Error != ""
}

// Records returns the result in its wire shape: a list of offers, or a
// single {"error": ...} or {"info": ...} record.
func (r FlightSearchResult) Records() []any {
	switch {
	case r.Error != "":
		return []any{map[string]string{"error": r.Error}}
	case len(r.Offers) == 0:
		info := r.Info
		if info == "" {
			info = NoFlightsFound
		}
		return []any{map[string]string{"info": info}}
	}
	out := make([]any, len(r.Offers))
	for i, o := range r.Offers {
		out[i] = o
	}
	return out
}

func (r FlightSearchResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Records())
}
