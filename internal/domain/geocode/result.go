package geocode

import (
	"encoding/json"
	"errors"
	"time"

	"partnermap/internal/domain/partner"
)

const (
	ProviderNominatim = "nominatim"
	ProviderGoogle    = "google"
)

// ErrNoResult reports that a provider answered without usable coordinates.
var ErrNoResult = errors.New("geocode: no result")

// Answer is what a provider returned for one query. Raw may be set even when
// the provider reported ErrNoResult.
type Answer struct {
	Lat         float64
	Lon         float64
	DisplayName string
	Raw         json.RawMessage
}

// Result is a resolved location and the query that produced it.
type Result struct {
	Lat         float64
	Lon         float64
	Provider    string
	Query       string
	DisplayName string
	Raw         json.RawMessage
}

func (r Result) Point() partner.Point {
	return partner.Point{Lon: r.Lon, Lat: r.Lat}
}

// CacheEntry is one remembered provider outcome. A failed entry has OK false
// and no coordinates. Entries are never rewritten.
type CacheEntry struct {
	Provider    string
	Query       string
	OK          bool
	Lat         float64
	Lon         float64
	DisplayName string
	Raw         json.RawMessage
	CreatedAt   time.Time
}

// Result converts a successful entry into a Result.
func (e CacheEntry) Result() (Result, bool) {
	if !e.OK {
		return Result{}, false
	}
	return Result{
		Lat:         e.Lat,
		Lon:         e.Lon,
		Provider:    e.Provider,
		Query:       e.Query,
		DisplayName: e.DisplayName,
		Raw:         e.Raw,
	}, true
}
