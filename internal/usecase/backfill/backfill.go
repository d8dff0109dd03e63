package backfill

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"k8s.io/utils/clock"
	"k8s.io/utils/ptr"

	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/domain/partner"
	"partnermap/internal/errs"
	"partnermap/internal/ports"
)

// saveEvery is the progress persistence cadence, counted from the first candidate.
const saveEvery = 5

const (
	msgMissingBoth    = "Skipped: missing city and country"
	msgMissingCity    = "Skipped: missing city"
	msgMissingCountry = "Skipped: missing country"
	msgManual         = "Skipped: location set manually"
	msgNoResult       = "No geocode result"
)

// Service submits and runs geocode backfill jobs.
type Service struct {
	jobs     ports.GeocodeJobRepository
	schools  ports.SchoolRepository
	resolver ports.CityResolver
	queue    ports.JobQueue
	clock    clock.PassiveClock
}

func NewService(jobs ports.GeocodeJobRepository, schools ports.SchoolRepository, resolver ports.CityResolver, queue ports.JobQueue, c clock.PassiveClock) *Service {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Service{jobs: jobs, schools: schools, resolver: resolver, queue: queue, clock: c}
}

// Submit records a queued backfill; a non-positive limit means the default.
func (s *Service) Submit(ctx context.Context, limit int) (partner.GeocodeJob, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return partner.GeocodeJob{}, errs.Wrap(err, "generate geocode job id")
	}
	job, err := s.jobs.CreateGeocodeJob(ctx, partner.GeocodeJob{
		ID:             id.String(),
		Status:         partner.JobQueued,
		CreatedAt:      s.clock.Now().UTC(),
		RequestedLimit: partner.EffectiveGeocodeLimit(limit),
	})
	if err != nil {
		return partner.GeocodeJob{}, err
	}

	if err := s.queue.Publish(ctx, ports.JobMessage{Kind: partner.JobKindGeocode, JobID: job.ID}); err != nil {
		logging.Warn(ctx, "publish geocode job failed",
			slog.String("job_id", job.ID), slog.Any("err", errs.Loggable(err)))
	}
	logging.Info(ctx, "geocode backfill submitted",
		slog.String("job_id", job.ID), slog.Int("limit", job.RequestedLimit))
	return job, nil
}

func (s *Service) Get(ctx context.Context, id string) (partner.GeocodeJob, error) {
	return s.jobs.GetGeocodeJob(ctx, strings.TrimSpace(id))
}

func (s *Service) Latest(ctx context.Context) (partner.GeocodeJob, bool, error) {
	job, err := s.jobs.LatestGeocodeJob(ctx)
	if errors.Is(err, partner.ErrJobNotFound) {
		return partner.GeocodeJob{}, false, nil
	}
	if err != nil {
		return partner.GeocodeJob{}, false, err
	}
	return job, true, nil
}

type backfillRun struct {
	job       partner.GeocodeJob
	rowErrors []partner.SchoolIssue
}

func (run *backfillRun) issue(school partner.School, message string) {
	if len(run.rowErrors) < partner.MaxDiagnostics {
		run.rowErrors = append(run.rowErrors, partner.SchoolIssue{
			SchoolID:    strconv.FormatUint(school.ID, 10),
			ExternalKey: school.ExternalKey,
			Message:     message,
		})
	}
}

// Run claims the job and geocodes its candidates one at a time.
func (s *Service) Run(ctx context.Context, jobID string) (partner.GeocodeJob, error) {
	job, err := s.jobs.ClaimGeocodeJob(ctx, jobID)
	if err != nil {
		return partner.GeocodeJob{}, err
	}
	ctx = logging.WithJob(ctx, string(partner.JobKindGeocode), job.ID)

	run := &backfillRun{job: job}
	candidates, err := s.schools.ListGeocodeCandidates(ctx, partner.EffectiveGeocodeLimit(job.RequestedLimit))
	if err != nil {
		return s.fail(ctx, run, err)
	}
	run.job.Summary.TotalCandidates = len(candidates)
	if err := s.save(ctx, run); err != nil {
		return s.fail(ctx, run, err)
	}
	logging.Info(ctx, "geocode backfill started", slog.Int("candidates", len(candidates)))

	for i, school := range candidates {
		if err := s.geocodeOne(ctx, run, school); err != nil {
			return s.fail(ctx, run, errs.Wrapf(err, "school %d", school.ID))
		}
		if i%saveEvery == 0 {
			if err := s.save(ctx, run); err != nil {
				return s.fail(ctx, run, err)
			}
		}
	}

	run.job.Status = partner.JobSucceeded
	run.job.FinishedAt = ptr.To(s.clock.Now().UTC())
	if err := s.save(ctx, run); err != nil {
		return run.job, err
	}

	sum := run.job.Summary
	logging.Info(ctx, "geocode backfill finished",
		slog.Int("processed", sum.Processed), slog.Int("updated", sum.Updated),
		slog.Int("skipped", sum.Skipped), slog.Int("failed", sum.Failed))
	return run.job, nil
}

func (s *Service) geocodeOne(ctx context.Context, run *backfillRun, school partner.School) error {
	run.job.Summary.Processed++
	if !school.AutomationMayRelocate() {
		run.job.Summary.Skipped++
		run.issue(school, msgManual)
		return nil
	}

	city := strings.TrimSpace(school.City)
	country := strings.TrimSpace(school.Country)
	switch {
	case city == "" && country == "":
		run.job.Summary.Skipped++
		run.issue(school, msgMissingBoth)
		return nil
	case city == "":
		run.job.Summary.Skipped++
		run.issue(school, msgMissingCity)
		return nil
	case country == "":
		run.job.Summary.Skipped++
		run.issue(school, msgMissingCountry)
		return nil
	}

	result, ok, err := s.resolver.ResolveCity(ctx, school.City, school.Country, school.Name)
	if err != nil {
		return err
	}
	if !ok {
		run.job.Summary.Failed++
		run.issue(school, msgNoResult)
		return nil
	}

	written, err := s.schools.SetCityLocationUnlessManual(ctx, school.ID, partner.LocationFix{
		Location:  result.Point(),
		Precision: partner.PrecisionCity,
		Provider:  result.Provider,
		Query:     result.Query,
		At:        s.clock.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if !written {
		run.job.Summary.Skipped++
		run.issue(school, msgManual)
		return nil
	}
	run.job.Summary.Updated++
	return nil
}

func (s *Service) save(ctx context.Context, run *backfillRun) error {
	run.job.RowErrors = partner.Bounded(run.rowErrors)
	return s.jobs.SaveGeocodeJob(ctx, run.job)
}

func (s *Service) fail(ctx context.Context, run *backfillRun, cause error) (partner.GeocodeJob, error) {
	run.job.Status = partner.JobFailed
	run.job.FinishedAt = ptr.To(s.clock.Now().UTC())
	run.job.ErrorLog = errs.Trace(errs.WithStack(cause))

	logging.Error(ctx, "geocode backfill failed", slog.Any("err", errs.Loggable(cause)))
	if err := s.save(context.WithoutCancel(ctx), run); err != nil {
		return run.job, errors.Join(cause, err)
	}
	return run.job, cause
}
