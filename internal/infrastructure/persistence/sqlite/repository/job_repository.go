package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"partnermap/internal/domain/partner"
	"partnermap/internal/errs"
	"partnermap/internal/infrastructure/persistence/sqlite/model"
	"partnermap/internal/infrastructure/persistence/sqlite/uow"
	"partnermap/internal/ports"
)

var importClaimColumns = []string{
	"status", "started_at", "finished_at", "error_log",
	"inserted", "updated", "unchanged", "failed_rows",
	"row_errors", "warnings",
}

var geocodeClaimColumns = []string{
	"status", "started_at", "finished_at", "error_log",
	"total_candidates", "processed", "updated", "skipped", "failed",
	"row_errors",
}

// JobRepository stores import and geocode job records.
type JobRepository struct {
	db *gorm.DB
}

var (
	_ ports.ImportJobRepository  = (*JobRepository)(nil)
	_ ports.GeocodeJobRepository = (*JobRepository)(nil)
)

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) CreateImportJob(ctx context.Context, job partner.ImportJob) (partner.ImportJob, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return partner.ImportJob{}, err
	}

	row := toImportJobModel(job)
	if err := db.Create(&row).Error; err != nil {
		return partner.ImportJob{}, errs.Wrap(err, "insert import job")
	}
	return mapImportJob(row), nil
}

func (r *JobRepository) GetImportJob(ctx context.Context, id string) (partner.ImportJob, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return partner.ImportJob{}, err
	}
	return getImportJob(db, id)
}

func (r *JobRepository) ClaimImportJob(ctx context.Context, id string) (partner.ImportJob, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return partner.ImportJob{}, err
	}

	now := time.Now().UTC()
	claimed := model.ImportJob{
		Status:    string(partner.JobRunning),
		StartedAt: &now,
		RowErrors: []partner.RowIssue{},
		Warnings:  []partner.RowIssue{},
	}
	result := db.Model(&model.ImportJob{}).
		Where("id = ? AND status = ?", id, string(partner.JobQueued)).
		Select(importClaimColumns).
		Updates(&claimed)
	if result.Error != nil {
		return partner.ImportJob{}, errs.Wrapf(result.Error, "claim import job %s", id)
	}
	if result.RowsAffected == 0 {
		if _, err := getImportJob(db, id); err != nil {
			return partner.ImportJob{}, err
		}
		return partner.ImportJob{}, partner.ErrJobNotClaimable
	}
	return getImportJob(db, id)
}

func (r *JobRepository) SaveImportJob(ctx context.Context, job partner.ImportJob) error {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return err
	}

	row := toImportJobModel(job)
	if err := db.Save(&row).Error; err != nil {
		return errs.Wrapf(err, "save import job %s", job.ID)
	}
	return nil
}

func (r *JobRepository) ListQueuedImportJobs(ctx context.Context) ([]partner.ImportJob, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.ImportJob
	if err := db.Where("status = ?", string(partner.JobQueued)).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query queued import jobs")
	}

	items := make([]partner.ImportJob, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapImportJob(row))
	}
	return items, nil
}

func (r *JobRepository) CreateGeocodeJob(ctx context.Context, job partner.GeocodeJob) (partner.GeocodeJob, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return partner.GeocodeJob{}, err
	}

	row := toGeocodeJobModel(job)
	if err := db.Create(&row).Error; err != nil {
		return partner.GeocodeJob{}, errs.Wrap(err, "insert geocode job")
	}
	return mapGeocodeJob(row), nil
}

func (r *JobRepository) GetGeocodeJob(ctx context.Context, id string) (partner.GeocodeJob, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return partner.GeocodeJob{}, err
	}
	return getGeocodeJob(db, id)
}

// LatestGeocodeJob breaks created_at ties by id, which is time ordered.
func (r *JobRepository) LatestGeocodeJob(ctx context.Context) (partner.GeocodeJob, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return partner.GeocodeJob{}, err
	}

	var row model.GeocodeJob
	if err := db.Order("created_at desc").Order("id desc").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return partner.GeocodeJob{}, partner.ErrJobNotFound
		}
		return partner.GeocodeJob{}, errs.Wrap(err, "query latest geocode job")
	}
	return mapGeocodeJob(row), nil
}

func (r *JobRepository) ClaimGeocodeJob(ctx context.Context, id string) (partner.GeocodeJob, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return partner.GeocodeJob{}, err
	}

	now := time.Now().UTC()
	claimed := model.GeocodeJob{
		Status:    string(partner.JobRunning),
		StartedAt: &now,
		RowErrors: []partner.SchoolIssue{},
	}
	result := db.Model(&model.GeocodeJob{}).
		Where("id = ? AND status = ?", id, string(partner.JobQueued)).
		Select(geocodeClaimColumns).
		Updates(&claimed)
	if result.Error != nil {
		return partner.GeocodeJob{}, errs.Wrapf(result.Error, "claim geocode job %s", id)
	}
	if result.RowsAffected == 0 {
		if _, err := getGeocodeJob(db, id); err != nil {
			return partner.GeocodeJob{}, err
		}
		return partner.GeocodeJob{}, partner.ErrJobNotClaimable
	}
	return getGeocodeJob(db, id)
}

func (r *JobRepository) SaveGeocodeJob(ctx context.Context, job partner.GeocodeJob) error {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return err
	}

	row := toGeocodeJobModel(job)
	if err := db.Save(&row).Error; err != nil {
		return errs.Wrapf(err, "save geocode job %s", job.ID)
	}
	return nil
}

func (r *JobRepository) ListQueuedGeocodeJobs(ctx context.Context) ([]partner.GeocodeJob, error) {
	db, err := uow.DB(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.GeocodeJob
	if err := db.Where("status = ?", string(partner.JobQueued)).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query queued geocode jobs")
	}

	items := make([]partner.GeocodeJob, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapGeocodeJob(row))
	}
	return items, nil
}

func getImportJob(db *gorm.DB, id string) (partner.ImportJob, error) {
	var row model.ImportJob
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return partner.ImportJob{}, partner.ErrJobNotFound
		}
		return partner.ImportJob{}, errs.Wrapf(err, "query import job %s", id)
	}
	return mapImportJob(row), nil
}

func getGeocodeJob(db *gorm.DB, id string) (partner.GeocodeJob, error) {
	var row model.GeocodeJob
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return partner.GeocodeJob{}, partner.ErrJobNotFound
		}
		return partner.GeocodeJob{}, errs.Wrapf(err, "query geocode job %s", id)
	}
	return mapGeocodeJob(row), nil
}

func toImportJobModel(job partner.ImportJob) model.ImportJob {
	return model.ImportJob{
		ID:               job.ID,
		OriginalFileName: job.OriginalFileName,
		FileURL:          job.FileURL,
		FileHash:         job.FileHash,
		LocalPath:        job.LocalPath,
		Status:           string(job.Status),
		CreatedAt:        job.CreatedAt,
		StartedAt:        job.StartedAt,
		FinishedAt:       job.FinishedAt,
		Inserted:         job.Summary.Inserted,
		Updated:          job.Summary.Updated,
		Unchanged:        job.Summary.Unchanged,
		FailedRows:       job.Summary.FailedRows,
		ErrorLog:         job.ErrorLog,
		RowErrors:        nonNil(partner.Bounded(job.RowErrors)),
		Warnings:         nonNil(partner.Bounded(job.Warnings)),
	}
}

func mapImportJob(row model.ImportJob) partner.ImportJob {
	return partner.ImportJob{
		ID:               row.ID,
		OriginalFileName: row.OriginalFileName,
		FileURL:          row.FileURL,
		FileHash:         row.FileHash,
		LocalPath:        row.LocalPath,
		Status:           partner.JobStatus(row.Status),
		CreatedAt:        row.CreatedAt,
		StartedAt:        row.StartedAt,
		FinishedAt:       row.FinishedAt,
		Summary: partner.ImportSummary{
			Inserted:   row.Inserted,
			Updated:    row.Updated,
			Unchanged:  row.Unchanged,
			FailedRows: row.FailedRows,
		},
		ErrorLog:  row.ErrorLog,
		RowErrors: nonNil(row.RowErrors),
		Warnings:  nonNil(row.Warnings),
	}
}

func toGeocodeJobModel(job partner.GeocodeJob) model.GeocodeJob {
	return model.GeocodeJob{
		ID:              job.ID,
		Status:          string(job.Status),
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		FinishedAt:      job.FinishedAt,
		RequestedLimit:  job.RequestedLimit,
		TotalCandidates: job.Summary.TotalCandidates,
		Processed:       job.Summary.Processed,
		Updated:         job.Summary.Updated,
		Skipped:         job.Summary.Skipped,
		Failed:          job.Summary.Failed,
		ErrorLog:        job.ErrorLog,
		RowErrors:       nonNil(partner.Bounded(job.RowErrors)),
	}
}

func mapGeocodeJob(row model.GeocodeJob) partner.GeocodeJob {
	return partner.GeocodeJob{
		ID:             row.ID,
		Status:         partner.JobStatus(row.Status),
		CreatedAt:      row.CreatedAt,
		StartedAt:      row.StartedAt,
		FinishedAt:     row.FinishedAt,
		RequestedLimit: row.RequestedLimit,
		Summary: partner.GeocodeSummary{
			TotalCandidates: row.TotalCandidates,
			Processed:       row.Processed,
			Updated:         row.Updated,
			Skipped:         row.Skipped,
			Failed:          row.Failed,
		},
		ErrorLog:  row.ErrorLog,
		RowErrors: nonNil(row.RowErrors),
	}
}
