package cmd

import (
	"strconv"
	"time"

	"partnermap/internal/domain/partner"
	"partnermap/internal/usecase/catalog"
)

type importJobView struct {
	ID               string                `json:"id"`
	OriginalFileName string                `json:"originalFileName"`
	FileURL          string                `json:"fileUrl"`
	FileHash         string                `json:"fileHash"`
	Status           partner.JobStatus     `json:"status"`
	CreatedAt        time.Time             `json:"createdAt"`
	StartedAt        *time.Time            `json:"startedAt,omitempty"`
	FinishedAt       *time.Time            `json:"finishedAt,omitempty"`
	Summary          partner.ImportSummary `json:"summary"`
	ErrorLog         string                `json:"errorLog,omitempty"`
	RowErrors        []partner.RowIssue    `json:"rowErrors"`
	Warnings         []partner.RowIssue    `json:"warnings"`
}

func newImportJobView(job partner.ImportJob) importJobView {
	return importJobView{
		ID:               job.ID,
		OriginalFileName: job.OriginalFileName,
		FileURL:          job.FileURL,
		FileHash:         job.FileHash,
		Status:           job.Status,
		CreatedAt:        job.CreatedAt,
		StartedAt:        job.StartedAt,
		FinishedAt:       job.FinishedAt,
		Summary:          job.Summary,
		ErrorLog:         job.ErrorLog,
		RowErrors:        orEmpty(job.RowErrors),
		Warnings:         orEmpty(job.Warnings),
	}
}

type geocodeJobView struct {
	ID             string                 `json:"id"`
	Status         partner.JobStatus      `json:"status"`
	CreatedAt      time.Time              `json:"createdAt"`
	StartedAt      *time.Time             `json:"startedAt,omitempty"`
	FinishedAt     *time.Time             `json:"finishedAt,omitempty"`
	RequestedLimit int                    `json:"requestedLimit"`
	Summary        partner.GeocodeSummary `json:"summary"`
	ErrorLog       string                 `json:"errorLog,omitempty"`
	RowErrors      []partner.SchoolIssue  `json:"rowErrors"`
}

func newGeocodeJobView(job partner.GeocodeJob) geocodeJobView {
	return geocodeJobView{
		ID:             job.ID,
		Status:         job.Status,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		FinishedAt:     job.FinishedAt,
		RequestedLimit: job.RequestedLimit,
		Summary:        job.Summary,
		ErrorLog:       job.ErrorLog,
		RowErrors:      orEmpty(job.RowErrors),
	}
}

// geoJSONPoint is a GeoJSON Point; coordinates are [lon, lat].
type geoJSONPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type schoolView struct {
	ID                   string                        `json:"id"`
	ExternalKey          string                        `json:"externalKey"`
	Name                 string                        `json:"name"`
	Continent            string                        `json:"continent"`
	Country              string                        `json:"country"`
	City                 string                        `json:"city"`
	Status               partner.Status                `json:"status"`
	MobilityProgrammes   []string                      `json:"mobilityProgrammes"`
	LanguageRequirements []partner.LanguageRequirement `json:"languageRequirements"`
	AgreementScope       string                        `json:"agreementScope"`
	DegreeProgrammes     []string                      `json:"degreeProgrammesInAgreement"`
	FurtherInfo          string                        `json:"furtherInfo"`
	Location             *geoJSONPoint                 `json:"location"`
	GeocodePrecision     partner.Precision             `json:"geocodePrecision"`
	SourceImportID       *string                       `json:"sourceImportId"`
	CreatedAt            time.Time                     `json:"createdAt"`
	UpdatedAt            time.Time                     `json:"updatedAt"`
}

func newSchoolView(school partner.School) schoolView {
	view := schoolView{
		ID:                   strconv.FormatUint(school.ID, 10),
		ExternalKey:          school.ExternalKey,
		Name:                 school.Name,
		Continent:            school.Continent,
		Country:              school.Country,
		City:                 school.City,
		Status:               school.Status,
		MobilityProgrammes:   orEmpty(school.MobilityProgrammes),
		LanguageRequirements: orEmpty(school.LanguageRequirements),
		AgreementScope:       school.AgreementScope,
		DegreeProgrammes:     orEmpty(school.DegreeProgrammes),
		FurtherInfo:          school.FurtherInfo,
		GeocodePrecision:     school.GeocodePrecision,
		CreatedAt:            school.CreatedAt,
		UpdatedAt:            school.UpdatedAt,
	}
	if school.Location != nil {
		view.Location = &geoJSONPoint{Type: "Point", Coordinates: school.Location.Coordinates()}
	}
	if school.SourceImportID != "" {
		id := school.SourceImportID
		view.SourceImportID = &id
	}
	return view
}

type pointView struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Country     string         `json:"country"`
	City        string         `json:"city"`
	Status      partner.Status `json:"status"`
	Coordinates [2]float64     `json:"coordinates"`
}

func newPointViews(items []catalog.PointItem) []pointView {
	out := make([]pointView, 0, len(items))
	for _, item := range items {
		out = append(out, pointView{
			ID:          strconv.FormatUint(item.ID, 10),
			Name:        item.Name,
			Country:     item.Country,
			City:        item.City,
			Status:      item.Status,
			Coordinates: item.Coordinates,
		})
	}
	return out
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
