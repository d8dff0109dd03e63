package geocode

import (
	"context"
	"errors"
	"log/slog"

	"k8s.io/utils/clock"

	"partnermap/internal/bootstrap/logging"
	domaingeocode "partnermap/internal/domain/geocode"
	"partnermap/internal/errs"
	"partnermap/internal/ports"
)

// Strategy resolves single queries against one provider, consulting the
// cache first and spacing network calls through the limiter.
type Strategy struct {
	provider ports.GeocodeProvider
	cache    ports.GeocodeCache
	limiter  ports.Limiter
	clock    clock.PassiveClock
}

func NewStrategy(provider ports.GeocodeProvider, cache ports.GeocodeCache, limiter ports.Limiter, c clock.PassiveClock) *Strategy {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Strategy{provider: provider, cache: cache, limiter: limiter, clock: c}
}

func (s *Strategy) Provider() string {
	return s.provider.Name()
}

// Lookup returns found=false for a blank query, a disabled provider, a
// cached failure, or a failed network call. Only context and cache read
// errors are returned.
func (s *Strategy) Lookup(ctx context.Context, query string) (domaingeocode.Result, bool, error) {
	query = domaingeocode.CleanQuery(query)
	if query == "" || !s.provider.Enabled() {
		return domaingeocode.Result{}, false, nil
	}
	providerName := s.provider.Name()

	entry, found, err := s.cache.Lookup(ctx, providerName, query)
	if err != nil {
		return domaingeocode.Result{}, false, errs.Wrapf(err, "read geocode cache for %q", query)
	}
	if found {
		result, ok := entry.Result()
		logging.Debug(ctx, "geocode cache hit",
			slog.String("provider", providerName), slog.String("query", query), slog.Bool("ok", ok))
		return result, ok, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return domaingeocode.Result{}, false, errs.Wrap(err, "wait for geocode slot")
	}
	answer, searchErr := s.provider.Search(ctx, query)
	s.limiter.Done(ctx)

	if searchErr != nil && ctx.Err() != nil {
		return domaingeocode.Result{}, false, errs.Wrap(ctx.Err(), "geocode search")
	}

	entry = domaingeocode.CacheEntry{
		Provider:  providerName,
		Query:     query,
		Raw:       answer.Raw,
		CreatedAt: s.clock.Now().UTC(),
	}
	if searchErr == nil {
		entry.OK = true
		entry.Lat = answer.Lat
		entry.Lon = answer.Lon
		entry.DisplayName = answer.DisplayName
	} else if !errors.Is(searchErr, domaingeocode.ErrNoResult) {
		logging.Warn(ctx, "geocode request failed",
			slog.String("provider", providerName), slog.String("query", query), slog.Any("err", errs.Loggable(searchErr)))
	}

	if err := s.cache.Store(ctx, entry); err != nil {
		logging.Warn(ctx, "store geocode cache entry failed",
			slog.String("provider", providerName), slog.String("query", query), slog.Any("err", errs.Loggable(err)))
	}

	result, ok := entry.Result()
	return result, ok, nil
}
