package ports

import (
	"context"

	"partnermap/internal/domain/partner"
)

// SchoolUpdate overwrites the descriptive fields of a stored school. A nil
// Fix leaves the location untouched.
type SchoolUpdate struct {
	Descriptive    partner.Descriptive
	SourceImportID string
	Fix            *partner.LocationFix
}

// PointQuery is the store-side part of a map query: bounding box and scalar
// filters. Empty strings mean no filter.
type PointQuery struct {
	West      float64
	South     float64
	East      float64
	North     float64
	Continent string
	Country   string
	Status    string
}

// OptionValues are the raw distinct values behind the filter menus.
type OptionValues struct {
	Continents         []string
	Countries          []string
	MobilityProgrammes []string
	Languages          []string
}

type SchoolReadRepository interface {
	GetByID(ctx context.Context, id uint64) (partner.School, error)
	FindByExternalKey(ctx context.Context, externalKey string) (partner.School, error)
	ListPoints(ctx context.Context, query PointQuery) ([]partner.School, error)
	DistinctOptionValues(ctx context.Context) (OptionValues, error)
}

type SchoolRepository interface {
	SchoolReadRepository
	Create(ctx context.Context, school partner.School) (partner.School, error)
	Update(ctx context.Context, id uint64, update SchoolUpdate) error
	// ListGeocodeCandidates returns non-manual schools without a resolved
	// location, oldest first.
	ListGeocodeCandidates(ctx context.Context, limit int) ([]partner.School, error)
	// SetCityLocationUnlessManual writes a geocoded location unless the school
	// became manual in the meantime. It reports whether a row was written.
	SetCityLocationUnlessManual(ctx context.Context, id uint64, fix partner.LocationFix) (bool, error)
}
