package ports

import (
	"context"

	"partnermap/internal/domain/geocode"
)

// GeocodeCache remembers provider outcomes per (provider, query).
type GeocodeCache interface {
	Lookup(ctx context.Context, provider string, query string) (entry geocode.CacheEntry, found bool, err error)
	// Store inserts entry unless one already exists for its key.
	Store(ctx context.Context, entry geocode.CacheEntry) error
}

// GeocodeProvider performs one network lookup. Search returns
// geocode.ErrNoResult when the provider answered without coordinates.
type GeocodeProvider interface {
	Name() string
	// Enabled is false when the provider lacks required credentials.
	Enabled() bool
	Search(ctx context.Context, query string) (geocode.Answer, error)
}

// Limiter spaces provider calls. Wait blocks until a call may start; Done
// marks the call finished so spacing is measured from completion.
type Limiter interface {
	Wait(ctx context.Context) error
	Done(ctx context.Context)
}

// CityResolver locates a school from its city and country, optionally
// narrowed by the institution name.
type CityResolver interface {
	ResolveCity(ctx context.Context, city string, country string, name string) (geocode.Result, bool, error)
}
