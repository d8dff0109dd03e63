package partner

import "strings"

// Column identifies a RawRow field that spreadsheet headers map onto.
type Column string

const (
	ColumnExternalKey    Column = "externalKey"
	ColumnContinent      Column = "continent"
	ColumnCountry        Column = "country"
	ColumnName           Column = "name"
	ColumnCity           Column = "city"
	ColumnMobility       Column = "mobility"
	ColumnLanguage       Column = "language"
	ColumnStatus         Column = "status"
	ColumnAgreementScope Column = "agreementScope"
	ColumnDegree         Column = "degree"
	ColumnFurtherInfo    Column = "furtherInfo"
	ColumnLat            Column = "lat"
	ColumnLon            Column = "lon"
)

// ColumnAliases lists accepted header names per column, in priority order.
type ColumnAliases map[Column][]string

// DefaultColumnAliases is the synonym table used when no overrides are configured.
func DefaultColumnAliases() ColumnAliases {
	return ColumnAliases{
		ColumnExternalKey:    {"externalKey", "external_key", "key"},
		ColumnContinent:      {"continent", "continentSection", "region", "area"},
		ColumnCountry:        {"country", "countryName", "destinationCountry"},
		ColumnName:           {"partnerInstitution", "name", "institution", "institutionName", "school", "partner", "partnerSchool"},
		ColumnCity:           {"city", "town", "locationCity"},
		ColumnMobility:       {"mobilityProgramme", "mobilityProgrammes", "mobility", "programme", "programmes"},
		ColumnLanguage:       {"languageRequirements", "languageRequirement", "language", "languages"},
		ColumnStatus:         {"status", "agreementStatus"},
		ColumnAgreementScope: {"agreementAppliesTo", "agreementScope", "scope"},
		ColumnDegree:         {"degreeProgrammesInAgreement", "degreeProgramme", "degreeProgrammes", "degrees"},
		ColumnFurtherInfo:    {"furtherInfo", "info", "notes", "comment"},
		ColumnLat:            {"lat", "latitude"},
		ColumnLon:            {"lon", "lng", "longitude"},
	}
}

// Merge returns a copy of a with extra aliases appended after the existing ones.
func (a ColumnAliases) Merge(extra ColumnAliases) ColumnAliases {
	out := make(ColumnAliases, len(a))
	for column, names := range a {
		out[column] = append([]string(nil), names...)
	}
	for column, names := range extra {
		out[column] = append(out[column], names...)
	}
	return out
}

// NormalizeHeader folds case and drops whitespace, underscores and hyphens,
// so "Institution Name", "institution_name" and "institutionName" compare equal.
func NormalizeHeader(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if isSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RowFromRecord resolves a header-keyed record into a RawRow. For each column
// the first alias with a non-blank value wins.
func RowFromRecord(headers []string, values []string, aliases ColumnAliases) RawRow {
	byKey := make(map[string]string, len(headers))
	for i, header := range headers {
		if i >= len(values) {
			break
		}
		byKey[NormalizeHeader(header)] = values[i]
	}

	get := func(column Column) string {
		for _, alias := range aliases[column] {
			if v, ok := byKey[NormalizeHeader(alias)]; ok && strings.TrimSpace(v) != "" {
				return v
			}
		}
		return ""
	}

	return RawRow{
		ExternalKey:     get(ColumnExternalKey),
		Continent:       get(ColumnContinent),
		Country:         get(ColumnCountry),
		Name:            get(ColumnName),
		City:            get(ColumnCity),
		MobilityText:    get(ColumnMobility),
		LanguageText:    get(ColumnLanguage),
		AgreementScope:  get(ColumnAgreementScope),
		DegreeText:      get(ColumnDegree),
		FurtherInfoText: get(ColumnFurtherInfo),
		StatusText:      get(ColumnStatus),
		LatText:         get(ColumnLat),
		LonText:         get(ColumnLon),
	}
}
