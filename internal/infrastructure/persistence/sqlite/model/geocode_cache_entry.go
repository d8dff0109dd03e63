package model

import "time"

// GeocodeCacheEntry is unique per (provider, query).
type GeocodeCacheEntry struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Provider    string    `gorm:"column:provider;type:text;not null;uniqueIndex:idx_geocode_cache_provider_query,priority:1"`
	Query       string    `gorm:"column:query;type:text;not null;uniqueIndex:idx_geocode_cache_provider_query,priority:2"`
	OK          bool      `gorm:"column:ok;not null;default:0"`
	Lat         *float64  `gorm:"column:lat"`
	Lon         *float64  `gorm:"column:lon"`
	DisplayName string    `gorm:"column:display_name;type:text;not null"`
	Raw         string    `gorm:"column:raw;type:text;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (GeocodeCacheEntry) TableName() string {
	return "geocode_cache"
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&School{}, &ImportJob{}, &GeocodeJob{}, &GeocodeCacheEntry{}}
}
