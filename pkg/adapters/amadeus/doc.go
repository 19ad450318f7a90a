/*
Package amadeus integrates the Amadeus self-service travel API.

It provides the three provider-facing components of the engine:

  - Client.FetchToken performs the OAuth2 client-credentials exchange.
  - Resolver maps free-text place names to IATA codes, falling back to a
    deterministic truncation whenever the provider cannot answer.
  - FlightSearcher queries the offer-search endpoint and maps raw offers to
    compact domain.FlightOffer records.

Neither Resolver nor FlightSearcher ever returns a fault: failures become a
fallback code or an error record. Transport faults are retried with
exponential backoff; HTTP status responses are not.
*/
package amadeus
