package amadeus_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/aretw0/tripwise/pkg/adapters/amadeus"
	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func newResolver(_ *fakeProvider, c *amadeus.Client) *amadeus.Resolver {
	return amadeus.NewResolver(c, c.Tokens())
}

func TestResolve_ShortInputUsesNoNetwork(t *testing.T) {
	p := newFakeProvider(t)
	r := newResolver(p, p.client())

	for _, place := range []string{"", "   ", "p", " x "} {
		res := r.Resolve(context.Background(), place)
		assert.Equal(t, domain.FallbackIATACode(place), res.Code, place)
		assert.Equal(t, domain.ProvenanceFallback, res.Provenance)
	}
	assert.Zero(t, p.tokenCalls.Load())
	assert.Zero(t, p.locationCalls.Load())
}

func TestResolve_PrefersCity(t *testing.T) {
	p := newFakeProvider(t)
	p.setLocation("Paris", airport("CDG"), city("PAR"), airport("ORY"))
	r := newResolver(p, p.client())

	res := r.Resolve(context.Background(), "  Paris ")
	assert.Equal(t, domain.IATACode("PAR"), res.Code)
	assert.Equal(t, domain.ProvenanceCity, res.Provenance)
}

func TestResolve_FirstAirportWithoutCity(t *testing.T) {
	p := newFakeProvider(t)
	p.setLocation("Heathrow", airport("LHR"), airport("LCY"))
	r := newResolver(p, p.client())

	res := r.Resolve(context.Background(), "Heathrow")
	assert.Equal(t, domain.IATACode("LHR"), res.Code)
	assert.Equal(t, domain.ProvenanceAirport, res.Provenance)
}

func TestResolve_EmptyResultFallsBack(t *testing.T) {
	p := newFakeProvider(t)
	r := newResolver(p, p.client())

	res := r.Resolve(context.Background(), "atlantis")
	assert.Equal(t, domain.IATACode("ATL"), res.Code)
	assert.Equal(t, domain.ProvenanceFallback, res.Provenance)
	assert.EqualValues(t, 1, p.locationCalls.Load())
}

func TestResolve_FaultsFallBack(t *testing.T) {
	t.Run("token rejected", func(t *testing.T) {
		p := newFakeProvider(t)
		p.tokenStatus = http.StatusUnauthorized
		p.setLocation("Rome", city("ROM"))
		r := newResolver(p, p.client())

		assert.Equal(t, domain.IATACode("ROM"), r.Resolve(context.Background(), "rome").Code)
		assert.Zero(t, p.locationCalls.Load())
	})

	t.Run("location endpoint error", func(t *testing.T) {
		p := newFakeProvider(t)
		p.locationStatus = http.StatusInternalServerError
		r := newResolver(p, p.client())

		res := r.Resolve(context.Background(), "Lisbon")
		assert.Equal(t, domain.IATACode("LIS"), res.Code)
		assert.Equal(t, domain.ProvenanceFallback, res.Provenance)
	})

	t.Run("transport fault", func(t *testing.T) {
		p := newFakeProvider(t)
		c := p.client(func(cfg *amadeus.Config) {
			cfg.MaxTries = 1
			cfg.HTTPClient = &http.Client{Transport: refusingTransport{}}
		})
		r := newResolver(p, c)

		assert.Equal(t, domain.IATACode("BER"), r.Resolve(context.Background(), "berlin").Code)
	})
}

func TestResolve_RefreshesCachedTokenAfter401(t *testing.T) {
	p := newFakeProvider(t)
	p.setLocation("Paris", city("PAR"))
	p.rejectTokens["Bearer tok-1"] = true
	c := p.client()
	r := amadeus.NewResolver(c, amadeus.NewCachedTokenSource(c))

	res := r.Resolve(context.Background(), "Paris")
	assert.Equal(t, domain.IATACode("PAR"), res.Code)
	assert.Equal(t, domain.ProvenanceCity, res.Provenance)
	assert.EqualValues(t, 2, p.tokenCalls.Load())
	assert.EqualValues(t, 2, p.locationCalls.Load())
}
