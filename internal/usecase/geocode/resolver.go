package geocode

import (
	"context"
	"fmt"
	"strings"

	domaingeocode "partnermap/internal/domain/geocode"
)

// Resolver turns a (city, country, name) triple into a location. The
// primary strategy walks the city variants; the alternate strategy is only
// reached through ResolveAlternate and never acts as a fallback.
type Resolver struct {
	primary   *Strategy
	alternate *Strategy
}

func NewResolver(primary *Strategy, alternate *Strategy) *Resolver {
	return &Resolver{primary: primary, alternate: alternate}
}

// ResolveCity tries each candidate query in order and returns the first hit.
func (r *Resolver) ResolveCity(ctx context.Context, city string, country string, name string) (domaingeocode.Result, bool, error) {
	for _, query := range domaingeocode.Queries(city, country, name) {
		result, ok, err := r.primary.Lookup(ctx, query)
		if err != nil {
			return domaingeocode.Result{}, false, err
		}
		if ok {
			return result, true, nil
		}
	}
	return domaingeocode.Result{}, false, nil
}

func (r *Resolver) ResolveAlternate(ctx context.Context, query string) (domaingeocode.Result, bool, error) {
	if r.alternate == nil {
		return domaingeocode.Result{}, false, nil
	}
	return r.alternate.Lookup(ctx, query)
}

// Lookup runs a single query against the named provider.
func (r *Resolver) Lookup(ctx context.Context, provider string, query string) (domaingeocode.Result, bool, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	switch {
	case provider == "" || provider == r.primary.Provider():
		return r.primary.Lookup(ctx, query)
	case r.alternate != nil && provider == r.alternate.Provider():
		return r.alternate.Lookup(ctx, query)
	default:
		return domaingeocode.Result{}, false, fmt.Errorf("unknown geocode provider %q", provider)
	}
}
