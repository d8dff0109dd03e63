package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/domain/partner"
	"partnermap/internal/errs"
	"partnermap/internal/usecase/catalog"
	"partnermap/internal/usecase/partnerimport"
)

const maxUploadBytes = 32 << 20

type importAPI interface {
	Submit(ctx context.Context, upload partnerimport.Upload) (partner.ImportJob, error)
	Get(ctx context.Context, id string) (partner.ImportJob, error)
}

type geocodeAPI interface {
	Submit(ctx context.Context, limit int) (partner.GeocodeJob, error)
	Get(ctx context.Context, id string) (partner.GeocodeJob, error)
	Latest(ctx context.Context) (partner.GeocodeJob, bool, error)
}

type catalogAPI interface {
	GetSchool(ctx context.Context, id uint64) (partner.School, error)
	Points(ctx context.Context, filter catalog.PointFilter) ([]catalog.PointItem, error)
	Options(ctx context.Context) (catalog.Options, error)
}

type apiHandler struct {
	imports  importAPI
	geocodes geocodeAPI
	catalog  catalogAPI
}

type apiErrorResponse struct {
	Error string `json:"error"`
}

func newAPIHandler(imports importAPI, geocodes geocodeAPI, cat catalogAPI) http.Handler {
	h := &apiHandler{imports: imports, geocodes: geocodes, catalog: cat}

	r := chi.NewRouter()
	r.Route("/api/admin/partner-schools", func(r chi.Router) {
		r.Post("/import", h.submitImport)
		r.Get("/import/{id}", h.getImport)
		r.Post("/geocode", h.submitGeocode)
		r.Get("/geocode", h.latestGeocode)
		r.Get("/geocode/{id}", h.getGeocode)
	})
	r.Route("/api/partner-schools", func(r chi.Router) {
		r.Get("/points", h.points)
		r.Get("/options", h.options)
		r.Get("/{id}", h.getSchool)
	})
	return r
}

func (h *apiHandler) submitImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "Missing file (field name: file)")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	job, err := h.imports.Submit(r.Context(), partnerimport.Upload{FileName: header.Filename, Data: data})
	switch {
	case errors.Is(err, partnerimport.ErrFileRequired):
		writeAPIError(w, http.StatusBadRequest, "Missing file (field name: file)")
		return
	case errors.Is(err, partnerimport.ErrUnsupportedFile):
		writeAPIError(w, http.StatusBadRequest, "Only .csv, .tsv, .txt or .xlsx is supported")
		return
	case err != nil:
		writeInternalError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, map[string]string{"importId": job.ID})
}

func (h *apiHandler) getImport(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := h.imports.Get(r.Context(), id)
	if errors.Is(err, partner.ErrJobNotFound) {
		writeAPIError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, newImportJobView(job))
}

func (h *apiHandler) submitGeocode(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit = parseLimit(raw)
	}
	var body struct {
		Limit any `json:"limit"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err == nil && body.Limit != nil {
		switch v := body.Limit.(type) {
		case float64:
			limit = truncate(v)
		case string:
			limit = parseLimit(v)
		default:
			limit = 0
		}
	}

	job, err := h.geocodes.Submit(r.Context(), limit)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, map[string]string{"jobId": job.ID})
}

func (h *apiHandler) latestGeocode(w http.ResponseWriter, r *http.Request) {
	job, found, err := h.geocodes.Latest(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if !found {
		writeAPIJSON(w, http.StatusOK, map[string]any{"job": nil})
		return
	}
	writeAPIJSON(w, http.StatusOK, map[string]any{"job": newGeocodeJobView(job)})
}

func (h *apiHandler) getGeocode(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := h.geocodes.Get(r.Context(), id)
	if errors.Is(err, partner.ErrJobNotFound) {
		writeAPIError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, newGeocodeJobView(job))
}

func (h *apiHandler) points(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	west, south, east, north, err := catalog.ParseBBox(q.Get("bbox"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "Missing/invalid bbox")
		return
	}

	items, err := h.catalog.Points(r.Context(), catalog.PointFilter{
		West:      west,
		South:     south,
		East:      east,
		North:     north,
		Continent: q.Get("continent"),
		Country:   q.Get("country"),
		Status:    q.Get("status"),
		Mobility:  catalog.SplitMobility(q.Get("mobility")),
		Language:  q.Get("lang"),
		Level:     q.Get("level"),
		Query:     q.Get("q"),
	})
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, map[string]any{"items": newPointViews(items)})
}

func (h *apiHandler) options(w http.ResponseWriter, r *http.Request) {
	opts, err := h.catalog.Options(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, opts)
}

func (h *apiHandler) getSchool(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeAPIError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	school, err := h.catalog.GetSchool(r.Context(), id)
	if errors.Is(err, partner.ErrSchoolNotFound) {
		writeAPIError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, newSchoolView(school))
}

func jobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeAPIError(w, http.StatusBadRequest, "Invalid id")
		return "", false
	}
	return id, true
}

// parseLimit reads a numeric limit; anything unparsable becomes 0, which
// the submission replaces with the default.
func parseLimit(raw string) int {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return truncate(v)
}

func truncate(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v > math.MaxInt32 {
		return 0
	}
	return int(v)
}

func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	logging.Error(r.Context(), "api request failed", slog.Any("err", errs.Loggable(err)))
	writeAPIError(w, http.StatusInternalServerError, "Internal error")
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeAPIJSON(w, status, apiErrorResponse{Error: message})
}

func writeAPIJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
