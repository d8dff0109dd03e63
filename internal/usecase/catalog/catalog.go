package catalog

import (
	"context"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"partnermap/internal/domain/partner"
	"partnermap/internal/ports"
)

// Service serves the read side of the partner map.
type Service struct {
	schools ports.SchoolReadRepository
}

func NewService(schools ports.SchoolReadRepository) *Service {
	return &Service{schools: schools}
}

func (s *Service) GetSchool(ctx context.Context, id uint64) (partner.School, error) {
	return s.schools.GetByID(ctx, id)
}

type PointItem struct {
	ID          uint64
	Name        string
	Country     string
	City        string
	Status      partner.Status
	Coordinates [2]float64
}

// Points returns located schools inside the box that pass every filter,
// at most MaxPoints of them.
func (s *Service) Points(ctx context.Context, filter PointFilter) ([]PointItem, error) {
	schools, err := s.schools.ListPoints(ctx, ports.PointQuery{
		West:      filter.West,
		South:     filter.South,
		East:      filter.East,
		North:     filter.North,
		Continent: scalar(filter.Continent),
		Country:   scalar(filter.Country),
		Status:    scalar(filter.Status),
	})
	if err != nil {
		return nil, err
	}

	var matchers []func(partner.School) bool
	for _, m := range []func(partner.School) bool{
		mobilityMatcher(filter.Mobility),
		languageMatcher(filter.Language, filter.Level),
		textMatcher(filter.Query),
	} {
		if m != nil {
			matchers = append(matchers, m)
		}
	}

	items := make([]PointItem, 0, min(len(schools), MaxPoints))
	for _, school := range schools {
		if school.Location == nil || !matchAll(matchers, school) {
			continue
		}
		items = append(items, PointItem{
			ID:          school.ID,
			Name:        school.Name,
			Country:     school.Country,
			City:        school.City,
			Status:      school.Status,
			Coordinates: school.Location.Coordinates(),
		})
		if len(items) == MaxPoints {
			break
		}
	}
	return items, nil
}

func matchAll(matchers []func(partner.School) bool, school partner.School) bool {
	for _, m := range matchers {
		if !m(school) {
			return false
		}
	}
	return true
}

type Options struct {
	Continents         []string `json:"continents"`
	Countries          []string `json:"countries"`
	MobilityProgrammes []string `json:"mobilityProgrammes"`
	Languages          []string `json:"languages"`
	Levels             []string `json:"levels"`
}

func (s *Service) Options(ctx context.Context) (Options, error) {
	values, err := s.schools.DistinctOptionValues(ctx)
	if err != nil {
		return Options{}, err
	}

	col := collate.New(language.English)
	return Options{
		Continents:         uniqueSorted(col, values.Continents),
		Countries:          uniqueSorted(col, values.Countries),
		MobilityProgrammes: uniqueSorted(col, values.MobilityProgrammes),
		Languages:          uniqueSorted(col, values.Languages),
		Levels:             append([]string(nil), partner.CEFRLevels...),
	}, nil
}

func uniqueSorted(col *collate.Collator, values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	col.SortStrings(out)
	return out
}
