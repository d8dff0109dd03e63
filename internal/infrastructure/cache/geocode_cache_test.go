package cache

import (
	"context"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"partnermap/internal/domain/geocode"
	"partnermap/internal/infrastructure/persistence/sqlite/model"
)

func setupGeocodeCache(t *testing.T) *GeocodeCache {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "cache.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.GeocodeCacheEntry{}); err != nil {
		t.Fatalf("auto migrate geocode_cache: %v", err)
	}
	return NewGeocodeCache(db)
}

func TestGeocodeCacheStoreLookup(t *testing.T) {
	cache := setupGeocodeCache(t)
	ctx := context.Background()

	if err := cache.Store(ctx, geocode.CacheEntry{
		Provider:    geocode.ProviderNominatim,
		Query:       "Espoo, Finland",
		OK:          true,
		Lat:         60.2055,
		Lon:         24.6559,
		DisplayName: "Espoo, Uusimaa, Finland",
		Raw:         []byte(`{"lat":"60.2055"}`),
	}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	entry, found, err := cache.Lookup(ctx, geocode.ProviderNominatim, "Espoo, Finland")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !found || !entry.OK || entry.Lat != 60.2055 || entry.Lon != 24.6559 || entry.DisplayName != "Espoo, Uusimaa, Finland" {
		t.Fatalf("Lookup() = %+v, found=%v", entry, found)
	}
	if string(entry.Raw) != `{"lat":"60.2055"}` {
		t.Fatalf("Lookup() raw = %s", entry.Raw)
	}

	_, found, err = cache.Lookup(ctx, geocode.ProviderGoogle, "Espoo, Finland")
	if err != nil {
		t.Fatalf("Lookup(google) error = %v", err)
	}
	if found {
		t.Fatalf("entries must be scoped by provider")
	}
}

func TestGeocodeCacheEntriesAreImmutable(t *testing.T) {
	cache := setupGeocodeCache(t)
	ctx := context.Background()

	if err := cache.Store(ctx, geocode.CacheEntry{Provider: geocode.ProviderNominatim, Query: "Deventer, Netherlands"}); err != nil {
		t.Fatalf("Store(failure) error = %v", err)
	}
	if err := cache.Store(ctx, geocode.CacheEntry{Provider: geocode.ProviderNominatim, Query: "Deventer, Netherlands", OK: true, Lat: 52.25, Lon: 6.16}); err != nil {
		t.Fatalf("Store(duplicate) error = %v", err)
	}

	entry, found, err := cache.Lookup(ctx, geocode.ProviderNominatim, "Deventer, Netherlands")
	if err != nil || !found {
		t.Fatalf("Lookup() found=%v err=%v", found, err)
	}
	if entry.OK {
		t.Fatalf("first outcome was overwritten: %+v", entry)
	}
}

func TestGeocodeCacheRejectsEmptyKey(t *testing.T) {
	cache := setupGeocodeCache(t)
	ctx := context.Background()

	if err := cache.Store(ctx, geocode.CacheEntry{Provider: "nominatim"}); err == nil {
		t.Fatalf("Store() expected error for empty query")
	}
	if _, _, err := cache.Lookup(ctx, "", "q"); err == nil {
		t.Fatalf("Lookup() expected error for empty provider")
	}
}
