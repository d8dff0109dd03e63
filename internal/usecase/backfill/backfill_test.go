package backfill

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"partnermap/internal/domain/geocode"
	"partnermap/internal/domain/partner"
	"partnermap/internal/infrastructure/persistence/sqlite/model"
	"partnermap/internal/infrastructure/persistence/sqlite/repository"
	"partnermap/internal/infrastructure/queue"
	"partnermap/internal/ports"
)

type resolverFunc func(ctx context.Context, city string, country string, name string) (geocode.Result, bool, error)

func (f resolverFunc) ResolveCity(ctx context.Context, city string, country string, name string) (geocode.Result, bool, error) {
	return f(ctx, city, country, name)
}

func hitEverything(_ context.Context, city string, country string, _ string) (geocode.Result, bool, error) {
	return geocode.Result{Lat: 10, Lon: 20, Provider: geocode.ProviderNominatim, Query: city + ", " + country}, true, nil
}

// countingJobs counts progress saves.
type countingJobs struct {
	*repository.JobRepository
	saves int
}

func (c *countingJobs) SaveGeocodeJob(ctx context.Context, job partner.GeocodeJob) error {
	c.saves++
	return c.JobRepository.SaveGeocodeJob(ctx, job)
}

func setup(t *testing.T) (*repository.SchoolRepository, *countingJobs) {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "partnermap.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return repository.NewSchoolRepository(db), &countingJobs{JobRepository: repository.NewJobRepository(db)}
}

func seed(t *testing.T, schools *repository.SchoolRepository, key string, city string, country string, precision partner.Precision, location *partner.Point) partner.School {
	t.Helper()
	created, err := schools.Create(context.Background(), partner.School{
		ExternalKey:      key,
		Name:             "School " + key,
		Continent:        "Europe",
		Country:          country,
		City:             city,
		Status:           partner.StatusConfirmed,
		Location:         location,
		GeocodePrecision: precision,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
	return created
}

func submitAndRun(t *testing.T, svc *Service, limit int) partner.GeocodeJob {
	t.Helper()
	job, err := svc.Submit(context.Background(), limit)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	done, err := svc.Run(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return done
}

func TestBackfillNeverTouchesManualSchools(t *testing.T) {
	schools, jobs := setup(t)
	manual := seed(t, schools, "m1", "Espoo", "Finland", partner.PrecisionManual, &partner.Point{Lon: 24.8, Lat: 60.2})
	seed(t, schools, "m2", "", "", partner.PrecisionManual, nil)

	svc := NewService(jobs, schools, resolverFunc(hitEverything), queue.NewMemoryQueue(4), nil)
	job := submitAndRun(t, svc, 0)

	if job.Summary.Updated != 0 || job.Summary.TotalCandidates != 0 {
		t.Fatalf("summary = %+v, want no candidates and no updates", job.Summary)
	}
	if job.RequestedLimit != partner.DefaultGeocodeLimit {
		t.Fatalf("requested limit = %d", job.RequestedLimit)
	}
	stored, err := schools.GetByID(context.Background(), manual.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Location.Lat != 60.2 || stored.GeocodePrecision != partner.PrecisionManual {
		t.Fatalf("manual school changed: %+v", stored)
	}
}

func TestBackfillClassifiesCandidates(t *testing.T) {
	schools, jobs := setup(t)
	ok := seed(t, schools, "ok", "Tartu", "Estonia", partner.PrecisionNone, &partner.Point{Lon: 1, Lat: 1})
	seed(t, schools, "both", "", "", partner.PrecisionNone, nil)
	seed(t, schools, "city", "", "Estonia", partner.PrecisionNone, nil)
	seed(t, schools, "country", "Tartu", " ", partner.PrecisionNone, nil)
	seed(t, schools, "miss", "Atlantis", "Greece", partner.PrecisionNone, nil)
	seed(t, schools, "located", "Oulu", "Finland", partner.PrecisionCity, &partner.Point{Lon: 25, Lat: 65})

	resolver := resolverFunc(func(ctx context.Context, city, country, name string) (geocode.Result, bool, error) {
		if city == "Atlantis" {
			return geocode.Result{}, false, nil
		}
		return hitEverything(ctx, city, country, name)
	})
	svc := NewService(jobs, schools, resolver, queue.NewMemoryQueue(4), nil)
	job := submitAndRun(t, svc, 10)

	want := partner.GeocodeSummary{TotalCandidates: 5, Processed: 5, Updated: 1, Skipped: 3, Failed: 1}
	if job.Summary != want {
		t.Fatalf("summary = %+v, want %+v", job.Summary, want)
	}
	wantMessages := []string{msgMissingBoth, msgMissingCity, msgMissingCountry, msgNoResult}
	if len(job.RowErrors) != len(wantMessages) {
		t.Fatalf("row errors = %+v", job.RowErrors)
	}
	for i, msg := range wantMessages {
		if job.RowErrors[i].Message != msg {
			t.Fatalf("row error %d = %q, want %q", i, job.RowErrors[i].Message, msg)
		}
	}

	stored, err := schools.GetByID(context.Background(), ok.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.GeocodePrecision != partner.PrecisionCity || stored.Location.Lat != 10 ||
		stored.GeocodeQuery != "Tartu, Estonia" || stored.GeocodeProvider != geocode.ProviderNominatim {
		t.Fatalf("updated school = %+v", stored)
	}
}

func TestBackfillPassesInstitutionName(t *testing.T) {
	schools, jobs := setup(t)
	seed(t, schools, "named", "Oulu", "Finland", partner.PrecisionNone, nil)

	var gotName string
	resolver := resolverFunc(func(ctx context.Context, city, country, name string) (geocode.Result, bool, error) {
		gotName = name
		return hitEverything(ctx, city, country, name)
	})
	submitAndRun(t, NewService(jobs, schools, resolver, queue.NewMemoryQueue(4), nil), 0)
	if gotName != "School named" {
		t.Fatalf("resolver name = %q", gotName)
	}
}

func TestBackfillCountsConcurrentManualEditAsSkipped(t *testing.T) {
	schools, jobs := setup(t)
	target := seed(t, schools, "race", "Tartu", "Estonia", partner.PrecisionNone, nil)

	resolver := resolverFunc(func(ctx context.Context, city, country, name string) (geocode.Result, bool, error) {
		err := schools.Update(ctx, target.ID, ports.SchoolUpdate{
			Descriptive: target.Descriptive(),
			Fix: &partner.LocationFix{
				Location:  partner.Point{Lon: 26.7, Lat: 58.4},
				Precision: partner.PrecisionManual,
				At:        time.Now().UTC(),
			},
		})
		if err != nil {
			return geocode.Result{}, false, err
		}
		return hitEverything(ctx, city, country, name)
	})
	job := submitAndRun(t, NewService(jobs, schools, resolver, queue.NewMemoryQueue(4), nil), 0)

	if job.Summary.Updated != 0 || job.Summary.Skipped != 1 {
		t.Fatalf("summary = %+v", job.Summary)
	}
	if len(job.RowErrors) != 1 || job.RowErrors[0].Message != msgManual {
		t.Fatalf("row errors = %+v", job.RowErrors)
	}
	stored, _ := schools.GetByID(context.Background(), target.ID)
	if stored.Location.Lat != 58.4 {
		t.Fatalf("manual location overwritten: %+v", stored.Location)
	}
}

// staleCandidates appends a school that was placed manually after listing.
type staleCandidates struct {
	*repository.SchoolRepository
	stale partner.School
}

func (s staleCandidates) ListGeocodeCandidates(ctx context.Context, limit int) ([]partner.School, error) {
	candidates, err := s.SchoolRepository.ListGeocodeCandidates(ctx, limit)
	return append(candidates, s.stale), err
}

func TestBackfillSkipsManualCandidateWithoutResolving(t *testing.T) {
	schools, jobs := setup(t)
	manual := seed(t, schools, "manual", "Tartu", "Estonia", partner.PrecisionManual, &partner.Point{Lon: 26.7, Lat: 58.4})

	calls := 0
	resolver := resolverFunc(func(ctx context.Context, city, country, name string) (geocode.Result, bool, error) {
		calls++
		return hitEverything(ctx, city, country, name)
	})
	svc := NewService(jobs, staleCandidates{SchoolRepository: schools, stale: manual}, resolver, queue.NewMemoryQueue(4), nil)
	job := submitAndRun(t, svc, 0)

	if calls != 0 {
		t.Fatalf("resolver called %d times for a manual school", calls)
	}
	if job.Summary.Processed != 1 || job.Summary.Skipped != 1 || job.Summary.Updated != 0 {
		t.Fatalf("summary = %+v", job.Summary)
	}
	if len(job.RowErrors) != 1 || job.RowErrors[0].Message != msgManual {
		t.Fatalf("row errors = %+v", job.RowErrors)
	}
}

func TestBackfillSavesProgressEveryFifthCandidate(t *testing.T) {
	schools, jobs := setup(t)
	for i := 0; i < 7; i++ {
		seed(t, schools, fmt.Sprintf("s%d", i), "Tartu", "Estonia", partner.PrecisionNone, nil)
	}
	job := submitAndRun(t, NewService(jobs, schools, resolverFunc(hitEverything), queue.NewMemoryQueue(4), nil), 0)

	if job.Summary.Updated != 7 {
		t.Fatalf("summary = %+v", job.Summary)
	}
	// candidate count, indexes 0 and 5, final
	if jobs.saves != 4 {
		t.Fatalf("saves = %d, want 4", jobs.saves)
	}
}

func TestBackfillRespectsLimit(t *testing.T) {
	schools, jobs := setup(t)
	for i := 0; i < 3; i++ {
		seed(t, schools, fmt.Sprintf("l%d", i), "Tartu", "Estonia", partner.PrecisionNone, nil)
	}
	job := submitAndRun(t, NewService(jobs, schools, resolverFunc(hitEverything), queue.NewMemoryQueue(4), nil), 2)
	if job.Summary.TotalCandidates != 2 || job.Summary.Processed != 2 {
		t.Fatalf("summary = %+v", job.Summary)
	}
}

func TestBackfillResolverErrorFailsJob(t *testing.T) {
	schools, jobs := setup(t)
	seed(t, schools, "boom", "Tartu", "Estonia", partner.PrecisionNone, nil)
	boom := errors.New("cache unavailable")

	svc := NewService(jobs, schools, resolverFunc(func(context.Context, string, string, string) (geocode.Result, bool, error) {
		return geocode.Result{}, false, boom
	}), queue.NewMemoryQueue(4), nil)
	job, err := svc.Submit(context.Background(), 0)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	failed, err := svc.Run(context.Background(), job.ID)
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v", err)
	}
	if failed.Status != partner.JobFailed || failed.ErrorLog == "" {
		t.Fatalf("job = %+v", failed)
	}

	latest, found, err := svc.Latest(context.Background())
	if err != nil || !found || latest.ID != job.ID || latest.Status != partner.JobFailed {
		t.Fatalf("Latest() = %+v, %v, %v", latest, found, err)
	}
}

func TestLatestWithoutJobs(t *testing.T) {
	schools, jobs := setup(t)
	svc := NewService(jobs, schools, resolverFunc(hitEverything), queue.NewMemoryQueue(1), nil)
	if _, found, err := svc.Latest(context.Background()); found || err != nil {
		t.Fatalf("Latest() = %v, %v", found, err)
	}
}
