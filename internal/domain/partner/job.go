package partner

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// JobKind names the two background job types.
type JobKind string

const (
	JobKindImport  JobKind = "partner_import"
	JobKindGeocode JobKind = "partner_geocode"
)

// DefaultGeocodeLimit caps a backfill when no limit is requested.
const DefaultGeocodeLimit = 250

// RowIssue is an import diagnostic tied to a 1-based data row.
type RowIssue struct {
	Row         int    `json:"row"`
	ExternalKey string `json:"externalKey,omitempty"`
	Message     string `json:"message"`
}

// SchoolIssue is a backfill diagnostic tied to a stored school.
type SchoolIssue struct {
	SchoolID    string `json:"schoolId,omitempty"`
	ExternalKey string `json:"externalKey,omitempty"`
	Message     string `json:"message"`
}

type ImportSummary struct {
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	FailedRows int `json:"failedRows"`
}

type ImportJob struct {
	ID               string
	OriginalFileName string
	FileURL          string
	FileHash         string
	LocalPath        string
	Status           JobStatus
	CreatedAt        time.Time
	StartedAt        *time.Time
	FinishedAt       *time.Time
	Summary          ImportSummary
	ErrorLog         string
	RowErrors        []RowIssue
	Warnings         []RowIssue
}

type GeocodeSummary struct {
	TotalCandidates int `json:"totalCandidates"`
	Processed       int `json:"processed"`
	Updated         int `json:"updated"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
}

type GeocodeJob struct {
	ID             string
	Status         JobStatus
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
	RequestedLimit int
	Summary        GeocodeSummary
	ErrorLog       string
	RowErrors      []SchoolIssue
}

// Bounded returns at most MaxDiagnostics leading items.
func Bounded[T any](items []T) []T {
	if len(items) > MaxDiagnostics {
		return items[:MaxDiagnostics]
	}
	return items
}

// EffectiveGeocodeLimit applies the default to a missing or non-positive limit.
func EffectiveGeocodeLimit(limit int) int {
	if limit <= 0 {
		return DefaultGeocodeLimit
	}
	return limit
}
