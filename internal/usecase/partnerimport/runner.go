package partnerimport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"k8s.io/utils/clock"
	"k8s.io/utils/ptr"

	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/domain/partner"
	"partnermap/internal/errs"
	"partnermap/internal/infrastructure/tabular"
	"partnermap/internal/ports"
)

const missingFieldsMessage = "Row missing required fields"

// Runner executes claimed import jobs row by row.
type Runner struct {
	jobs     ports.ImportJobRepository
	schools  ports.SchoolRepository
	uow      ports.UnitOfWork
	files    ports.FileStore
	resolver ports.CityResolver
	aliases  partner.ColumnAliases
	clock    clock.PassiveClock
}

type RunnerDeps struct {
	Jobs     ports.ImportJobRepository
	Schools  ports.SchoolRepository
	UoW      ports.UnitOfWork
	Files    ports.FileStore
	Resolver ports.CityResolver
	Aliases  partner.ColumnAliases
	Clock    clock.PassiveClock
}

func NewRunner(deps RunnerDeps) *Runner {
	r := &Runner{
		jobs:     deps.Jobs,
		schools:  deps.Schools,
		uow:      deps.UoW,
		files:    deps.Files,
		resolver: deps.Resolver,
		aliases:  deps.Aliases,
		clock:    deps.Clock,
	}
	if r.aliases == nil {
		r.aliases = partner.DefaultColumnAliases()
	}
	if r.clock == nil {
		r.clock = clock.RealClock{}
	}
	return r
}

type importRun struct {
	job       partner.ImportJob
	rowErrors []partner.RowIssue
	warnings  []partner.RowIssue
}

func (run *importRun) warn(issue partner.RowIssue) {
	if len(run.warnings) < partner.MaxDiagnostics {
		run.warnings = append(run.warnings, issue)
	}
}

// Run claims the job and imports its file. A job that is not queued yields
// partner.ErrJobNotClaimable. A failed job is saved before the error returns.
func (r *Runner) Run(ctx context.Context, jobID string) (partner.ImportJob, error) {
	job, err := r.jobs.ClaimImportJob(ctx, jobID)
	if err != nil {
		return partner.ImportJob{}, err
	}
	ctx = logging.WithJob(ctx, string(partner.JobKindImport), job.ID)
	logging.Info(ctx, "import started", slog.String("file", job.OriginalFileName))

	run := &importRun{job: job}
	if err := r.process(ctx, run); err != nil {
		return r.fail(ctx, run, err)
	}

	run.job.Status = partner.JobSucceeded
	run.job.FinishedAt = ptr.To(r.clock.Now().UTC())
	run.job.RowErrors = partner.Bounded(run.rowErrors)
	run.job.Warnings = partner.Bounded(run.warnings)
	if err := r.jobs.SaveImportJob(ctx, run.job); err != nil {
		return run.job, err
	}

	s := run.job.Summary
	logging.Info(ctx, "import finished",
		slog.Int("inserted", s.Inserted), slog.Int("updated", s.Updated),
		slog.Int("unchanged", s.Unchanged), slog.Int("failed_rows", s.FailedRows),
		slog.Int("warnings", len(run.warnings)))
	return run.job, nil
}

func (r *Runner) fail(ctx context.Context, run *importRun, cause error) (partner.ImportJob, error) {
	run.job.Status = partner.JobFailed
	run.job.FinishedAt = ptr.To(r.clock.Now().UTC())
	run.job.ErrorLog = errs.Trace(errs.WithStack(cause))
	// Rejected rows are counted again on failure.
	run.job.Summary.FailedRows += len(run.rowErrors)
	run.job.RowErrors = partner.Bounded(run.rowErrors)
	run.job.Warnings = partner.Bounded(run.warnings)

	logging.Error(ctx, "import failed", slog.Any("err", errs.Loggable(cause)))
	if err := r.jobs.SaveImportJob(context.WithoutCancel(ctx), run.job); err != nil {
		return run.job, errors.Join(cause, err)
	}
	return run.job, cause
}

func (r *Runner) process(ctx context.Context, run *importRun) error {
	rc, err := r.files.Open(ctx, run.job.LocalPath)
	if err != nil {
		return errs.Wrapf(err, "open upload %s", run.job.LocalPath)
	}
	table, err := tabular.Read(run.job.LocalPath, rc)
	_ = rc.Close()
	if err != nil {
		return errs.Wrapf(err, "parse upload %s", run.job.OriginalFileName)
	}

	for i, raw := range table.RawRows(r.aliases) {
		if err := r.importRow(ctx, run, i+1, raw); err != nil {
			return errs.Wrapf(err, "row %d", i+1)
		}
	}
	return nil
}

func (r *Runner) importRow(ctx context.Context, run *importRun, rowNum int, raw partner.RawRow) error {
	normalized, ok := partner.NormalizeRow(raw)
	if !ok {
		run.job.Summary.FailedRows++
		run.rowErrors = append(run.rowErrors, partner.RowIssue{Row: rowNum, Message: missingFieldsMessage})
		return nil
	}

	externalKey := partner.ResolveExternalKey(normalized)

	scope := partner.FixAgreementScope(normalized, raw)
	if scope.Applied {
		run.warn(partner.RowIssue{Row: rowNum, ExternalKey: externalKey, Message: scope.WarningMessage()})
	}
	if hasUnknownLevel(normalized.LanguageRequirements) {
		run.warn(partner.RowIssue{
			Row:         rowNum,
			ExternalKey: externalKey,
			Message:     partner.UnknownLevelWarning(normalized.UnknownLevelLanguages()),
		})
	}

	descriptive := partner.Descriptive{
		Name:                 normalized.Name,
		Continent:            normalized.Continent,
		Country:              normalized.Country,
		City:                 normalized.City,
		Status:               normalized.Status,
		MobilityProgrammes:   normalized.MobilityProgrammes,
		LanguageRequirements: normalized.LanguageRequirements,
		AgreementScope:       scope.AgreementScope,
		DegreeProgrammes:     normalized.DegreeProgrammes,
		FurtherInfo:          normalized.FurtherInfo,
	}

	existing, err := r.schools.FindByExternalKey(ctx, externalKey)
	switch {
	case errors.Is(err, partner.ErrSchoolNotFound):
		return r.insert(ctx, run, externalKey, normalized, descriptive)
	case err != nil:
		return err
	default:
		return r.update(ctx, run, existing, normalized, descriptive)
	}
}

func (r *Runner) insert(ctx context.Context, run *importRun, externalKey string, row partner.NormalizedRow, d partner.Descriptive) error {
	fix, err := r.locate(ctx, row)
	if err != nil {
		return err
	}

	school := partner.School{
		ExternalKey:          externalKey,
		Name:                 d.Name,
		Continent:            d.Continent,
		Country:              d.Country,
		City:                 d.City,
		Status:               d.Status,
		MobilityProgrammes:   d.MobilityProgrammes,
		LanguageRequirements: d.LanguageRequirements,
		AgreementScope:       d.AgreementScope,
		DegreeProgrammes:     d.DegreeProgrammes,
		FurtherInfo:          d.FurtherInfo,
		SourceImportID:       run.job.ID,
	}
	applyFix(&school, fix)

	if _, err := r.schools.Create(ctx, school); err != nil {
		return err
	}
	run.job.Summary.Inserted++
	return nil
}

func (r *Runner) update(ctx context.Context, run *importRun, existing partner.School, row partner.NormalizedRow, d partner.Descriptive) error {
	var fix *partner.LocationFix
	switch {
	case !existing.AutomationMayRelocate():
	case row.Coordinates != nil:
		manual := r.manualFix(*row.Coordinates)
		fix = &manual
	case existing.NeedsGeocode():
		located, err := r.locate(ctx, row)
		if err != nil {
			return err
		}
		fix = &located
	}

	before, err := json.Marshal(existing.Descriptive())
	if err != nil {
		return errs.Wrap(err, "encode stored school")
	}

	var after []byte
	err = r.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := r.schools.Update(txCtx, existing.ID, ports.SchoolUpdate{
			Descriptive:    d,
			SourceImportID: run.job.ID,
			Fix:            fix,
		}); err != nil {
			return err
		}
		stored, err := r.schools.GetByID(txCtx, existing.ID)
		if err != nil {
			return err
		}
		after, err = json.Marshal(stored.Descriptive())
		return errs.Wrap(err, "encode updated school")
	})
	if err != nil {
		return err
	}

	if string(before) == string(after) {
		run.job.Summary.Unchanged++
	} else {
		run.job.Summary.Updated++
	}
	return nil
}

// locate picks the location for a row: explicit coordinates, then the city
// geocode, then the continent fallback.
func (r *Runner) locate(ctx context.Context, row partner.NormalizedRow) (partner.LocationFix, error) {
	if row.Coordinates != nil {
		return r.manualFix(*row.Coordinates), nil
	}

	result, ok, err := r.resolver.ResolveCity(ctx, row.City, row.Country, "")
	if err != nil {
		return partner.LocationFix{}, err
	}
	now := r.clock.Now().UTC()
	if ok {
		return partner.LocationFix{
			Location:  result.Point(),
			Precision: partner.PrecisionCity,
			Provider:  result.Provider,
			Query:     result.Query,
			At:        now,
		}, nil
	}
	return partner.LocationFix{
		Location:  partner.FallbackPoint(row.Continent, row.Country, row.City, row.Name),
		Precision: partner.PrecisionNone,
		At:        now,
	}, nil
}

func (r *Runner) manualFix(p partner.Point) partner.LocationFix {
	return partner.LocationFix{Location: p, Precision: partner.PrecisionManual, At: r.clock.Now().UTC()}
}

func applyFix(school *partner.School, fix partner.LocationFix) {
	location := fix.Location
	at := fix.At
	school.Location = &location
	school.GeocodePrecision = fix.Precision
	school.GeocodeProvider = fix.Provider
	school.GeocodeQuery = fix.Query
	school.GeocodeUpdatedAt = &at
}

func hasUnknownLevel(reqs []partner.LanguageRequirement) bool {
	for _, req := range reqs {
		if req.Level == partner.LevelUnknown {
			return true
		}
	}
	return false
}
