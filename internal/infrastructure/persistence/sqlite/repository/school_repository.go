package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"partnermap/internal/domain/partner"
	"partnermap/internal/errs"
	"partnermap/internal/infrastructure/persistence/sqlite/model"
	"partnermap/internal/infrastructure/persistence/sqlite/uow"
	"partnermap/internal/ports"
)

var descriptiveColumns = []string{
	"name",
	"continent",
	"country",
	"city",
	"status",
	"mobility_programmes",
	"language_requirements",
	"agreement_scope",
	"degree_programmes",
	"further_info",
	"source_import_id",
	"updated_at",
}

var locationColumns = []string{
	"lon",
	"lat",
	"geocode_precision",
	"geocode_provider",
	"geocode_query",
	"geocode_updated_at",
}

type SchoolRepository struct {
	db *gorm.DB
}

var _ ports.SchoolRepository = (*SchoolRepository)(nil)

func NewSchoolRepository(db *gorm.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

func (r *SchoolRepository) GetByID(ctx context.Context, id uint64) (partner.School, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return partner.School{}, err
	}

	var row model.School
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return partner.School{}, partner.ErrSchoolNotFound
		}
		return partner.School{}, errs.Wrapf(err, "query school %d", id)
	}
	return mapSchool(row), nil
}

func (r *SchoolRepository) FindByExternalKey(ctx context.Context, externalKey string) (partner.School, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return partner.School{}, err
	}

	var row model.School
	if err := db.Where("external_key = ?", externalKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return partner.School{}, partner.ErrSchoolNotFound
		}
		return partner.School{}, errs.Wrap(err, "query school by external key")
	}
	return mapSchool(row), nil
}

func (r *SchoolRepository) Create(ctx context.Context, school partner.School) (partner.School, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return partner.School{}, err
	}

	now := time.Now().UTC()
	row := toSchoolModel(school)
	row.ID = 0
	row.CreatedAt = now
	row.UpdatedAt = now
	if err := db.Create(&row).Error; err != nil {
		return partner.School{}, errs.Wrap(err, "insert school")
	}
	return mapSchool(row), nil
}

func (r *SchoolRepository) Update(ctx context.Context, id uint64, update ports.SchoolUpdate) error {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return err
	}

	row := descriptiveModel(update.Descriptive)
	row.SourceImportID = update.SourceImportID
	row.UpdatedAt = time.Now().UTC()

	columns := append([]string(nil), descriptiveColumns...)
	if update.Fix != nil {
		applyLocationFix(&row, *update.Fix)
		columns = append(columns, locationColumns...)
	}

	if err := db.Model(&model.School{}).
		Where("id = ?", id).
		Select(columns).
		Updates(&row).Error; err != nil {
		return errs.Wrapf(err, "update school %d", id)
	}
	return nil
}

func (r *SchoolRepository) ListGeocodeCandidates(ctx context.Context, limit int) ([]partner.School, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.School
	if err := db.
		Where("geocode_precision <> ?", string(partner.PrecisionManual)).
		Where("(lat IS NULL OR lon IS NULL OR geocode_precision = ?)", string(partner.PrecisionNone)).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query geocode candidates")
	}
	return mapSchools(rows), nil
}

func (r *SchoolRepository) SetCityLocationUnlessManual(ctx context.Context, id uint64, fix partner.LocationFix) (bool, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return false, err
	}

	var row model.School
	applyLocationFix(&row, fix)
	row.UpdatedAt = time.Now().UTC()

	result := db.Model(&model.School{}).
		Where("id = ? AND geocode_precision <> ?", id, string(partner.PrecisionManual)).
		Select(append(append([]string(nil), locationColumns...), "updated_at")).
		Updates(&row)
	if result.Error != nil {
		return false, errs.Wrapf(result.Error, "set location of school %d", id)
	}
	return result.RowsAffected > 0, nil
}

func (r *SchoolRepository) ListPoints(ctx context.Context, query ports.PointQuery) ([]partner.School, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return nil, err
	}

	q := db.Model(&model.School{}).
		Where("lat IS NOT NULL AND lon IS NOT NULL").
		Where("lat BETWEEN ? AND ?", query.South, query.North)
	if query.West <= query.East {
		q = q.Where("lon BETWEEN ? AND ?", query.West, query.East)
	} else {
		// box crosses the antimeridian
		q = q.Where("(lon >= ? OR lon <= ?)", query.West, query.East)
	}
	if continent := strings.TrimSpace(query.Continent); continent != "" {
		q = q.Where("continent = ?", continent)
	}
	if country := strings.TrimSpace(query.Country); country != "" {
		q = q.Where("country = ?", country)
	}
	if status := strings.TrimSpace(query.Status); status != "" {
		q = q.Where("status = ?", status)
	}

	var rows []model.School
	if err := q.Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query school points")
	}
	return mapSchools(rows), nil
}

func (r *SchoolRepository) DistinctOptionValues(ctx context.Context) (ports.OptionValues, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return ports.OptionValues{}, err
	}

	var out ports.OptionValues
	if err := db.Model(&model.School{}).Distinct("continent").Pluck("continent", &out.Continents).Error; err != nil {
		return ports.OptionValues{}, errs.Wrap(err, "query distinct continents")
	}
	if err := db.Model(&model.School{}).Distinct("country").Pluck("country", &out.Countries).Error; err != nil {
		return ports.OptionValues{}, errs.Wrap(err, "query distinct countries")
	}
	if err := db.Raw(`SELECT DISTINCT CAST(j.value AS TEXT) AS value
FROM partner_schools, json_each(partner_schools.mobility_programmes) AS j
WHERE json_valid(partner_schools.mobility_programmes) AND j.type = 'text'`).
		Scan(&out.MobilityProgrammes).Error; err != nil {
		return ports.OptionValues{}, errs.Wrap(err, "query distinct mobility programmes")
	}
	if err := db.Raw(`SELECT DISTINCT COALESCE(json_extract(j.value, '$.language'), '') AS value
FROM partner_schools, json_each(partner_schools.language_requirements) AS j
WHERE json_valid(partner_schools.language_requirements)`).
		Scan(&out.Languages).Error; err != nil {
		return ports.OptionValues{}, errs.Wrap(err, "query distinct languages")
	}
	return out, nil
}

func descriptiveModel(d partner.Descriptive) model.School {
	return model.School{
		Name:                 d.Name,
		Continent:            d.Continent,
		Country:              d.Country,
		City:                 d.City,
		Status:               string(d.Status),
		MobilityProgrammes:   nonNil(d.MobilityProgrammes),
		LanguageRequirements: nonNil(d.LanguageRequirements),
		AgreementScope:       d.AgreementScope,
		DegreeProgrammes:     nonNil(d.DegreeProgrammes),
		FurtherInfo:          d.FurtherInfo,
	}
}

func applyLocationFix(row *model.School, fix partner.LocationFix) {
	lon, lat := fix.Location.Lon, fix.Location.Lat
	at := fix.At.UTC()
	row.Lon = &lon
	row.Lat = &lat
	row.GeocodePrecision = string(fix.Precision)
	row.GeocodeProvider = fix.Provider
	row.GeocodeQuery = fix.Query
	row.GeocodeUpdatedAt = &at
}

func toSchoolModel(school partner.School) model.School {
	row := descriptiveModel(school.Descriptive())
	row.ID = school.ID
	row.ExternalKey = school.ExternalKey
	row.GeocodePrecision = string(school.GeocodePrecision)
	if row.GeocodePrecision == "" {
		row.GeocodePrecision = string(partner.PrecisionNone)
	}
	row.GeocodeProvider = school.GeocodeProvider
	row.GeocodeQuery = school.GeocodeQuery
	row.GeocodeUpdatedAt = school.GeocodeUpdatedAt
	row.SourceImportID = school.SourceImportID
	if school.Location != nil {
		lon, lat := school.Location.Lon, school.Location.Lat
		row.Lon = &lon
		row.Lat = &lat
	}
	return row
}

func mapSchool(row model.School) partner.School {
	school := partner.School{
		ID:                   row.ID,
		ExternalKey:          row.ExternalKey,
		Name:                 row.Name,
		Continent:            row.Continent,
		Country:              row.Country,
		City:                 row.City,
		Status:               partner.Status(row.Status),
		MobilityProgrammes:   nonNil(row.MobilityProgrammes),
		LanguageRequirements: nonNil(row.LanguageRequirements),
		AgreementScope:       row.AgreementScope,
		DegreeProgrammes:     nonNil(row.DegreeProgrammes),
		FurtherInfo:          row.FurtherInfo,
		GeocodePrecision:     partner.Precision(row.GeocodePrecision),
		GeocodeProvider:      row.GeocodeProvider,
		GeocodeQuery:         row.GeocodeQuery,
		GeocodeUpdatedAt:     row.GeocodeUpdatedAt,
		SourceImportID:       row.SourceImportID,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
	if row.Lon != nil && row.Lat != nil {
		school.Location = &partner.Point{Lon: *row.Lon, Lat: *row.Lat}
	}
	return school
}

func mapSchools(rows []model.School) []partner.School {
	items := make([]partner.School, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapSchool(row))
	}
	return items
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
