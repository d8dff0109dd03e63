package partner

// RawRow is one tabular row after header resolution, every field still free text.
type RawRow struct {
	ExternalKey     string
	Continent       string
	Country         string
	Name            string
	City            string
	MobilityText    string
	LanguageText    string
	AgreementScope  string
	DegreeText      string
	FurtherInfoText string
	StatusText      string
	LatText         string
	LonText         string
}

// NormalizedRow is a RawRow parsed into structured school attributes.
type NormalizedRow struct {
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
	Coordinates          *Point
}

// UnknownLevelLanguages returns the languages whose level could not be parsed.
func (n NormalizedRow) UnknownLevelLanguages() []string {
	var out []string
	for _, req := range n.LanguageRequirements {
		if req.Level == LevelUnknown && req.Language != "" {
			out = append(out, req.Language)
		}
	}
	return out
}
