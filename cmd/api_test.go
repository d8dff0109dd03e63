package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	clocktesting "k8s.io/utils/clock/testing"

	"partnermap/internal/domain/geocode"
	"partnermap/internal/infrastructure/files"
	"partnermap/internal/infrastructure/persistence/sqlite/model"
	"partnermap/internal/infrastructure/persistence/sqlite/repository"
	"partnermap/internal/infrastructure/persistence/sqlite/uow"
	"partnermap/internal/infrastructure/queue"
	"partnermap/internal/usecase/backfill"
	"partnermap/internal/usecase/catalog"
	"partnermap/internal/usecase/partnerimport"
)

type missResolver struct{}

func (missResolver) ResolveCity(context.Context, string, string, string) (geocode.Result, bool, error) {
	return geocode.Result{}, false, nil
}

type apiFixture struct {
	handler http.Handler
	runner  *partnerimport.Runner
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "api.sqlite")), &gorm.Config{})
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

	clk := clocktesting.NewFakeClock(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC))
	schools := repository.NewSchoolRepository(db)
	jobs := repository.NewJobRepository(db)
	store := files.NewLocalStore(t.TempDir())
	q := queue.NewMemoryQueue(16)

	imports := partnerimport.NewService(jobs, store, q, partnerimport.DefaultURLPrefix, clk)
	runner := partnerimport.NewRunner(partnerimport.RunnerDeps{
		Jobs:     jobs,
		Schools:  schools,
		UoW:      uow.NewUnitOfWork(db),
		Files:    store,
		Resolver: missResolver{},
		Clock:    clk,
	})
	geocodes := backfill.NewService(jobs, schools, missResolver{}, q, clk)

	return apiFixture{
		handler: newAPIHandler(imports, geocodes, catalog.NewService(schools)),
		runner:  runner,
	}
}

func (f apiFixture) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)

	body := map[string]any{}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
	return resp.Code, body
}

func uploadRequest(t *testing.T, fileName string, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/partner-schools/import", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	return req
}

const apiCSV = `name,country,city,continent,lat,lon,mobility programme
Aalto University,Finland,Espoo,Europe,60.1867,24.8277,Erasmus+
`

func TestAPIImportFlow(t *testing.T) {
	f := newAPIFixture(t)

	code, body := f.do(t, uploadRequest(t, "partners.csv", apiCSV))
	if code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %v", code, body)
	}
	id, _ := body["importId"].(string)
	if id == "" {
		t.Fatalf("importId missing: %v", body)
	}

	code, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/partner-schools/import/"+id, nil))
	if code != http.StatusOK || body["status"] != "queued" {
		t.Fatalf("queued job = %d %v", code, body)
	}
	if url, _ := body["fileUrl"].(string); !strings.HasPrefix(url, "/uploads/partner-imports/") || !strings.HasSuffix(url, "-partners.csv") {
		t.Fatalf("fileUrl = %v", body["fileUrl"])
	}

	if _, err := f.runner.Run(context.Background(), id); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	code, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/partner-schools/import/"+id, nil))
	if code != http.StatusOK || body["status"] != "succeeded" {
		t.Fatalf("finished job = %d %v", code, body)
	}
	summary, _ := body["summary"].(map[string]any)
	if summary["inserted"] != float64(1) {
		t.Fatalf("summary = %v", summary)
	}

	code, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/partner-schools/points?bbox=20,55,30,65&mobility=erasmus&continent=all", nil))
	if code != http.StatusOK {
		t.Fatalf("points status = %d, body = %v", code, body)
	}
	items, _ := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v", body["items"])
	}
	point, _ := items[0].(map[string]any)
	coords, _ := point["coordinates"].([]any)
	if len(coords) != 2 || coords[0] != 24.8277 || coords[1] != 60.1867 {
		t.Fatalf("coordinates = %v, want [lon, lat]", point["coordinates"])
	}

	schoolID, _ := point["id"].(string)
	code, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/partner-schools/"+schoolID, nil))
	if code != http.StatusOK {
		t.Fatalf("school status = %d, body = %v", code, body)
	}
	if body["geocodePrecision"] != "manual" || body["sourceImportId"] != id {
		t.Fatalf("school = %v", body)
	}
	location, _ := body["location"].(map[string]any)
	if location["type"] != "Point" {
		t.Fatalf("location = %v", body["location"])
	}
}

func TestAPIRejectsBadInput(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name    string
		req     *http.Request
		status  int
		message string
	}{
		{
			name:    "unsupported upload",
			req:     uploadRequest(t, "partners.pdf", "%PDF"),
			status:  http.StatusBadRequest,
			message: "Only .csv, .tsv, .txt or .xlsx is supported",
		},
		{
			name:    "missing file",
			req:     httptest.NewRequest(http.MethodPost, "/api/admin/partner-schools/import", nil),
			status:  http.StatusBadRequest,
			message: "Missing file (field name: file)",
		},
		{
			name:    "invalid import id",
			req:     httptest.NewRequest(http.MethodGet, "/api/admin/partner-schools/import/not-a-uuid", nil),
			status:  http.StatusBadRequest,
			message: "Invalid id",
		},
		{
			name:    "unknown import id",
			req:     httptest.NewRequest(http.MethodGet, "/api/admin/partner-schools/import/0190f0a4-7d3c-7b44-9c5e-2f1f3b9a0c11", nil),
			status:  http.StatusNotFound,
			message: "Not found",
		},
		{
			name:    "missing bbox",
			req:     httptest.NewRequest(http.MethodGet, "/api/partner-schools/points", nil),
			status:  http.StatusBadRequest,
			message: "Missing/invalid bbox",
		},
		{
			name:    "short bbox",
			req:     httptest.NewRequest(http.MethodGet, "/api/partner-schools/points?bbox=1,2,3", nil),
			status:  http.StatusBadRequest,
			message: "Missing/invalid bbox",
		},
		{
			name:    "invalid school id",
			req:     httptest.NewRequest(http.MethodGet, "/api/partner-schools/abc", nil),
			status:  http.StatusBadRequest,
			message: "Invalid id",
		},
		{
			name:    "unknown school",
			req:     httptest.NewRequest(http.MethodGet, "/api/partner-schools/42", nil),
			status:  http.StatusNotFound,
			message: "Not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := f.do(t, tt.req)
			if code != tt.status || body["error"] != tt.message {
				t.Fatalf("got %d %v, want %d %q", code, body, tt.status, tt.message)
			}
		})
	}
}

func TestAPIGeocodeJobs(t *testing.T) {
	f := newAPIFixture(t)

	code, body := f.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/partner-schools/geocode", nil))
	if code != http.StatusOK {
		t.Fatalf("latest status = %d", code)
	}
	if job, ok := body["job"]; !ok || job != nil {
		t.Fatalf("latest without jobs = %v, want job null", body)
	}

	tests := []struct {
		name  string
		query string
		body  string
		want  float64
	}{
		{name: "default", want: 250},
		{name: "query", query: "?limit=12", want: 12},
		{name: "body overrides query", query: "?limit=12", body: `{"limit":7}`, want: 7},
		{name: "unparsable", query: "?limit=many", want: 250},
		{name: "non-positive", body: `{"limit":0}`, want: 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/partner-schools/geocode"+tt.query, strings.NewReader(tt.body))
			code, body := f.do(t, req)
			if code != http.StatusOK {
				t.Fatalf("submit status = %d, body = %v", code, body)
			}
			id, _ := body["jobId"].(string)

			code, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/partner-schools/geocode/"+id, nil))
			if code != http.StatusOK || body["status"] != "queued" {
				t.Fatalf("job = %d %v", code, body)
			}
			if body["requestedLimit"] != tt.want {
				t.Fatalf("requestedLimit = %v, want %v", body["requestedLimit"], tt.want)
			}
		})
	}

	code, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/partner-schools/geocode", nil))
	job, _ := body["job"].(map[string]any)
	if code != http.StatusOK || job["requestedLimit"] != float64(250) {
		t.Fatalf("latest = %d %v, want the last submitted job", code, body)
	}
}

func TestAPIOptions(t *testing.T) {
	f := newAPIFixture(t)
	if _, err := f.runner.Run(context.Background(), submitForTest(t, f)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	code, body := f.do(t, httptest.NewRequest(http.MethodGet, "/api/partner-schools/options", nil))
	if code != http.StatusOK {
		t.Fatalf("options status = %d", code)
	}
	levels, _ := body["levels"].([]any)
	if len(levels) != 5 || levels[0] != "A2" || levels[4] != "C2" {
		t.Fatalf("levels = %v", body["levels"])
	}
	countries, _ := body["countries"].([]any)
	if len(countries) != 1 || countries[0] != "Finland" {
		t.Fatalf("countries = %v", body["countries"])
	}
}

func submitForTest(t *testing.T, f apiFixture) string {
	t.Helper()
	code, body := f.do(t, uploadRequest(t, "partners.csv", apiCSV))
	if code != http.StatusOK {
		t.Fatalf("upload status = %d", code)
	}
	id, _ := body["importId"].(string)
	return id
}
