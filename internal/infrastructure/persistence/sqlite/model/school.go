package model

import (
	"time"

	"partnermap/internal/domain/partner"
)

type School struct {
	ID                   uint64                        `gorm:"column:id;primaryKey;autoIncrement"`
	ExternalKey          string                        `gorm:"column:external_key;type:text;not null;uniqueIndex:idx_partner_schools_external_key"`
	Name                 string                        `gorm:"column:name;type:text;not null"`
	Continent            string                        `gorm:"column:continent;type:text;not null;index"`
	Country              string                        `gorm:"column:country;type:text;not null;index"`
	City                 string                        `gorm:"column:city;type:text;not null"`
	Status               string                        `gorm:"column:status;type:text;not null;default:unknown"`
	MobilityProgrammes   []string                      `gorm:"column:mobility_programmes;type:text;serializer:json"`
	LanguageRequirements []partner.LanguageRequirement `gorm:"column:language_requirements;type:text;serializer:json"`
	AgreementScope       string                        `gorm:"column:agreement_scope;type:text;not null"`
	DegreeProgrammes     []string                      `gorm:"column:degree_programmes;type:text;serializer:json"`
	FurtherInfo          string                        `gorm:"column:further_info;type:text;not null"`
	Lon                  *float64                      `gorm:"column:lon"`
	Lat                  *float64                      `gorm:"column:lat;index"`
	GeocodePrecision     string                        `gorm:"column:geocode_precision;type:text;not null;default:none;index"`
	GeocodeProvider      string                        `gorm:"column:geocode_provider;type:text;not null"`
	GeocodeQuery         string                        `gorm:"column:geocode_query;type:text;not null"`
	GeocodeUpdatedAt     *time.Time                    `gorm:"column:geocode_updated_at"`
	SourceImportID       string                        `gorm:"column:source_import_id;type:text;not null"`
	CreatedAt            time.Time                     `gorm:"column:created_at;not null"`
	UpdatedAt            time.Time                     `gorm:"column:updated_at;not null"`
}

func (School) TableName() string {
	return "partner_schools"
}
