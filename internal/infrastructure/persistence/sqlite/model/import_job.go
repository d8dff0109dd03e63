package model

import (
	"time"

	"partnermap/internal/domain/partner"
)

type ImportJob struct {
	ID               string             `gorm:"column:id;type:text;primaryKey"`
	OriginalFileName string             `gorm:"column:original_file_name;type:text;not null"`
	FileURL          string             `gorm:"column:file_url;type:text;not null"`
	FileHash         string             `gorm:"column:file_hash;type:text;not null;index"`
	LocalPath        string             `gorm:"column:local_path;type:text;not null"`
	Status           string             `gorm:"column:status;type:text;not null;index"`
	CreatedAt        time.Time          `gorm:"column:created_at;not null"`
	StartedAt        *time.Time         `gorm:"column:started_at"`
	FinishedAt       *time.Time         `gorm:"column:finished_at"`
	Inserted         int                `gorm:"column:inserted;not null;default:0"`
	Updated          int                `gorm:"column:updated;not null;default:0"`
	Unchanged        int                `gorm:"column:unchanged;not null;default:0"`
	FailedRows       int                `gorm:"column:failed_rows;not null;default:0"`
	ErrorLog         string             `gorm:"column:error_log;type:text;not null"`
	RowErrors        []partner.RowIssue `gorm:"column:row_errors;type:text;serializer:json"`
	Warnings         []partner.RowIssue `gorm:"column:warnings;type:text;serializer:json"`
}

func (ImportJob) TableName() string {
	return "partner_import_jobs"
}
