package ports

import (
	"context"

	"partnermap/internal/domain/partner"
)

type ImportJobRepository interface {
	CreateImportJob(ctx context.Context, job partner.ImportJob) (partner.ImportJob, error)
	GetImportJob(ctx context.Context, id string) (partner.ImportJob, error)
	// ClaimImportJob moves a queued job to running and clears its summary and
	// diagnostics. It returns partner.ErrJobNotClaimable when the job is not queued.
	ClaimImportJob(ctx context.Context, id string) (partner.ImportJob, error)
	SaveImportJob(ctx context.Context, job partner.ImportJob) error
	ListQueuedImportJobs(ctx context.Context) ([]partner.ImportJob, error)
}

type GeocodeJobRepository interface {
	CreateGeocodeJob(ctx context.Context, job partner.GeocodeJob) (partner.GeocodeJob, error)
	GetGeocodeJob(ctx context.Context, id string) (partner.GeocodeJob, error)
	LatestGeocodeJob(ctx context.Context) (partner.GeocodeJob, error)
	ClaimGeocodeJob(ctx context.Context, id string) (partner.GeocodeJob, error)
	SaveGeocodeJob(ctx context.Context, job partner.GeocodeJob) error
	ListQueuedGeocodeJobs(ctx context.Context) ([]partner.GeocodeJob, error)
}
