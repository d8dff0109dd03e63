package partner

import "time"

type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusNegotiation Status = "negotiation"
	StatusUnknown     Status = "unknown"
)

// Precision tags where a school's coordinates came from.
type Precision string

const (
	PrecisionNone   Precision = "none"
	PrecisionCity   Precision = "city"
	PrecisionManual Precision = "manual"
)

// LevelUnknown marks a language requirement whose text carried no CEFR level.
const LevelUnknown = "UNKNOWN"

// CEFRLevels lists the levels recognised in language requirement text.
var CEFRLevels = []string{"A2", "B1", "B2", "C1", "C2"}

type LanguageRequirement struct {
	Language string `json:"language"`
	Level    string `json:"level"`
	Notes    string `json:"notes,omitempty"`
}

// Point is a WGS84 position. It is always serialised as [lon, lat].
type Point struct {
	Lon float64
	Lat float64
}

func (p Point) Coordinates() [2]float64 {
	return [2]float64{p.Lon, p.Lat}
}

type School struct {
	ID                   uint64
	ExternalKey          string
	Name                 string
	Continent            string
	Country              string
	City                 string
	Status               Status
	MobilityProgrammes   []string
	LanguageRequirements []LanguageRequirement
	AgreementScope       string
	DegreeProgrammes     []string
	FurtherInfo          string
	Location             *Point
	GeocodePrecision     Precision
	GeocodeProvider      string
	GeocodeQuery         string
	GeocodeUpdatedAt     *time.Time
	SourceImportID       string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Descriptive holds the non-geo attributes an import writes and compares.
type Descriptive struct {
	Name                 string                `json:"name"`
	Continent            string                `json:"continent"`
	Country              string                `json:"country"`
	City                 string                `json:"city"`
	Status               Status                `json:"status"`
	MobilityProgrammes   []string              `json:"mobilityProgrammes"`
	LanguageRequirements []LanguageRequirement `json:"languageRequirements"`
	AgreementScope       string                `json:"agreementScope"`
	DegreeProgrammes     []string              `json:"degreeProgrammesInAgreement"`
	FurtherInfo          string                `json:"furtherInfo"`
}

func (s School) Descriptive() Descriptive {
	return Descriptive{
		Name:                 s.Name,
		Continent:            s.Continent,
		Country:              s.Country,
		City:                 s.City,
		Status:               s.Status,
		MobilityProgrammes:   s.MobilityProgrammes,
		LanguageRequirements: s.LanguageRequirements,
		AgreementScope:       s.AgreementScope,
		DegreeProgrammes:     s.DegreeProgrammes,
		FurtherInfo:          s.FurtherInfo,
	}
}

// LocationFix is a location write together with its provenance.
type LocationFix struct {
	Location  Point
	Precision Precision
	Provider  string
	Query     string
	At        time.Time
}

// AutomationMayRelocate reports whether an automated process may write the
// school's location. Manually placed schools are never moved.
func (s School) AutomationMayRelocate() bool {
	return s.GeocodePrecision != PrecisionManual
}

// NeedsGeocode reports whether the school still lacks a resolved location.
func (s School) NeedsGeocode() bool {
	if !s.AutomationMayRelocate() {
		return false
	}
	return s.Location == nil || s.GeocodePrecision == PrecisionNone
}
