package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"partnermap/internal/domain/geocode"
	"partnermap/internal/errs"
	"partnermap/internal/infrastructure/persistence/sqlite/model"
	"partnermap/internal/infrastructure/persistence/sqlite/uow"
	"partnermap/internal/ports"
)

// GeocodeCache persists provider outcomes in the geocode_cache table.
type GeocodeCache struct {
	db *gorm.DB
}

var _ ports.GeocodeCache = (*GeocodeCache)(nil)

func NewGeocodeCache(db *gorm.DB) *GeocodeCache {
	return &GeocodeCache{db: db}
}

func (c *GeocodeCache) Lookup(ctx context.Context, provider string, query string) (geocode.CacheEntry, bool, error) {
	if ctx == nil {
		return geocode.CacheEntry{}, false, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return geocode.CacheEntry{}, false, errs.Wrap(err, "check context")
	}

	provider, query = strings.TrimSpace(provider), strings.TrimSpace(query)
	if provider == "" || query == "" {
		return geocode.CacheEntry{}, false, errors.New("provider and query are required")
	}

	db, err := uow.DB(ctx, c.db)
	if err != nil {
		return geocode.CacheEntry{}, false, err
	}

	var row model.GeocodeCacheEntry
	if err := db.Where("provider = ? AND query = ?", provider, query).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return geocode.CacheEntry{}, false, nil
		}
		return geocode.CacheEntry{}, false, errs.Wrap(err, "query geocode cache")
	}

	return mapEntry(row), true, nil
}

func (c *GeocodeCache) Store(ctx context.Context, entry geocode.CacheEntry) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	row := model.GeocodeCacheEntry{
		Provider:    strings.TrimSpace(entry.Provider),
		Query:       strings.TrimSpace(entry.Query),
		OK:          entry.OK,
		DisplayName: entry.DisplayName,
		Raw:         string(entry.Raw),
		CreatedAt:   entry.CreatedAt.UTC(),
	}
	if row.Provider == "" || row.Query == "" {
		return errors.New("provider and query are required")
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if entry.OK {
		lat, lon := entry.Lat, entry.Lon
		row.Lat = &lat
		row.Lon = &lon
	}

	db, err := uow.DB(ctx, c.db)
	if err != nil {
		return err
	}

	// First writer wins; entries are immutable.
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "query"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert geocode cache entry")
	}
	return nil
}

func mapEntry(row model.GeocodeCacheEntry) geocode.CacheEntry {
	entry := geocode.CacheEntry{
		Provider:    row.Provider,
		Query:       row.Query,
		OK:          row.OK,
		DisplayName: row.DisplayName,
		CreatedAt:   row.CreatedAt,
	}
	if row.Raw != "" {
		entry.Raw = []byte(row.Raw)
	}
	if row.OK && row.Lat != nil && row.Lon != nil {
		entry.Lat = *row.Lat
		entry.Lon = *row.Lon
	} else {
		entry.OK = false
	}
	return entry
}
