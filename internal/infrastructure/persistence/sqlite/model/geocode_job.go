package model

import (
	"time"

	"partnermap/internal/domain/partner"
)

type GeocodeJob struct {
	ID              string                `gorm:"column:id;type:text;primaryKey"`
	Status          string                `gorm:"column:status;type:text;not null;index"`
	CreatedAt       time.Time             `gorm:"column:created_at;not null"`
	StartedAt       *time.Time            `gorm:"column:started_at"`
	FinishedAt      *time.Time            `gorm:"column:finished_at"`
	RequestedLimit  int                   `gorm:"column:requested_limit;not null"`
	TotalCandidates int                   `gorm:"column:total_candidates;not null;default:0"`
	Processed       int                   `gorm:"column:processed;not null;default:0"`
	Updated         int                   `gorm:"column:updated;not null;default:0"`
	Skipped         int                   `gorm:"column:skipped;not null;default:0"`
	Failed          int                   `gorm:"column:failed;not null;default:0"`
	ErrorLog        string                `gorm:"column:error_log;type:text;not null"`
	RowErrors       []partner.SchoolIssue `gorm:"column:row_errors;type:text;serializer:json"`
}

func (GeocodeJob) TableName() string {
	return "partner_geocode_jobs"
}
