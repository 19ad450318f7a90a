// Package itinerary defines the default trip-planning pipeline: extract trip
// details, research flights and activities in parallel, assemble a plan, then
// render, enhance and clean it into a single HTML document.
package itinerary
