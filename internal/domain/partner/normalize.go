package partner

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// NormalizeRow turns a raw row into structured attributes. It returns false
// when name or country is blank; such rows cannot be stored.
func NormalizeRow(row RawRow) (NormalizedRow, bool) {
	name := clean(row.Name)
	country := clean(row.Country)
	if name == "" || country == "" {
		return NormalizedRow{}, false
	}

	continent := clean(row.Continent)
	if continent == "" {
		continent = "Unknown"
	}

	out := NormalizedRow{
		ExternalKey:          clean(row.ExternalKey),
		Name:                 name,
		Continent:            continent,
		Country:              country,
		City:                 clean(row.City),
		Status:               ParseStatus(row.StatusText),
		MobilityProgrammes:   SplitMobility(row.MobilityText),
		LanguageRequirements: ParseLanguageRequirements(row.LanguageText),
		AgreementScope:       clean(row.AgreementScope),
		DegreeProgrammes:     SplitDegreeProgrammes(row.DegreeText),
		FurtherInfo:          clean(row.FurtherInfoText),
	}

	lat, latOK := ParseCoordinate(row.LatText)
	lon, lonOK := ParseCoordinate(row.LonText)
	if latOK && lonOK {
		out.Coordinates = &Point{Lon: lon, Lat: lat}
	}

	return out, true
}

func clean(value string) string {
	return strings.TrimFunc(value, isSpace)
}

// isSpace reports Unicode spaces, including the no-break space and the BOM
// that spreadsheet exports leave in cells.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// foldSpaces maps every Unicode space to an ASCII space.
func foldSpaces(value string) string {
	return strings.Map(func(r rune) rune {
		if isSpace(r) {
			return ' '
		}
		return r
	}, value)
}

type statusRule struct {
	name   string
	match  func(lower string) bool
	status Status
}

func statusEquals(want string) func(string) bool {
	return func(lower string) bool { return lower == want }
}

func statusContains(fragment string) func(string) bool {
	return func(lower string) bool { return strings.Contains(lower, fragment) }
}

// statusRules are evaluated top to bottom; the first match wins.
var statusRules = []statusRule{
	{name: "exact confirmed", match: statusEquals("confirmed"), status: StatusConfirmed},
	{name: "exact negotiation", match: statusEquals("negotiation"), status: StatusNegotiation},
	{name: "exact unknown", match: statusEquals("unknown"), status: StatusUnknown},
	{name: "mentions confirm", match: statusContains("confirm"), status: StatusConfirmed},
	{name: "mentions negoti", match: statusContains("negoti"), status: StatusNegotiation},
}

// ParseStatus maps free status text to a Status. Unrecognised text is unknown.
func ParseStatus(text string) Status {
	lower := strings.ToLower(clean(text))
	for _, rule := range statusRules {
		if rule.match(lower) {
			return rule.status
		}
	}
	return StatusUnknown
}

var (
	mobilitySeparators = regexp.MustCompile(`[,;/]`)
	degreeSeparators   = regexp.MustCompile(`[\n,;/]`)
)

// SplitMobility splits mobility programme text on comma, semicolon and slash.
// Order is kept and duplicates are not removed.
func SplitMobility(text string) []string {
	return splitNonEmpty(text, mobilitySeparators)
}

// SplitDegreeProgrammes splits degree text on newline, comma, semicolon and slash.
func SplitDegreeProgrammes(text string) []string {
	return splitNonEmpty(text, degreeSeparators)
}

func splitNonEmpty(text string, separators *regexp.Regexp) []string {
	t := clean(text)
	if t == "" {
		return []string{}
	}

	parts := separators.Split(t, -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseCoordinate parses a decimal degree value; a decimal comma is accepted.
func ParseCoordinate(text string) (float64, bool) {
	t := clean(text)
	if t == "" {
		return 0, false
	}

	n, err := strconv.ParseFloat(strings.Replace(t, ",", ".", 1), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
