package geocode

import (
	"regexp"
	"strings"
	"unicode/utf16"
)

// MaxCityVariants caps how many spellings of one city are tried.
const MaxCityVariants = 8

var (
	whitespaceRe     = regexp.MustCompile(`[\s\p{Z}\x{85}\x{FEFF}]+`)
	brokenWordRe     = regexp.MustCompile(`(?i)\b([a-z]{2,4})-([a-z]{2,4})\b`)
	citySeparatorsRe = regexp.MustCompile(`[;,/]+`)
)

// CleanQuery collapses whitespace runs and trims the result.
func CleanQuery(value string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(value, " "))
}

// NormalizeCity repairs copy artifacts in a city cell: underscores become
// spaces and short words split by a hyphen are merged ("deve-nter").
func NormalizeCity(raw string) string {
	v := CleanQuery(raw)
	if v == "" {
		return ""
	}

	v = strings.ReplaceAll(v, "_", " ")
	v = brokenWordRe.ReplaceAllString(v, "$1$2")

	switch strings.ToLower(v) {
	case "s-hertogen-bosch", "s-hertogenbosch":
		return "'s-Hertogenbosch"
	}
	return v
}

// CityVariants expands a city cell into at most MaxCityVariants spellings,
// the normalized input first. Comparison for duplicates ignores case.
func CityVariants(rawCity string) []string {
	base := NormalizeCity(rawCity)
	if base == "" {
		return nil
	}

	out := []string{base}
	for _, part := range citySeparatorsRe.Split(base, -1) {
		if p := NormalizeCity(part); p != "" && p != base {
			out = append(out, p)
		}
	}

	hyphens := strings.Count(base, "-")
	switch {
	case hyphens >= 2 || (hyphens >= 1 && textLength(base) > 28):
		var parts []string
		for _, part := range strings.Split(base, "-") {
			if p := NormalizeCity(part); textLength(p) >= 3 {
				parts = append(parts, p)
			}
		}
		out = append(out, parts...)
		for i := 0; i+1 < len(parts); i++ {
			out = append(out, parts[i]+" "+parts[i+1])
		}
	case hyphens == 1:
		left, right, _ := strings.Cut(base, "-")
		left, right = NormalizeCity(left), NormalizeCity(right)
		if textLength(left) >= 4 && textLength(right) >= 4 {
			out = append(out, left, right)
		}
		out = append(out, strings.ReplaceAll(base, "-", " "), strings.ReplaceAll(base, "-", ", "))
	}

	return dedupeFold(out, MaxCityVariants)
}

// Queries lists the free-text queries tried for a location, most specific
// first: per city variant, "name, city, country" when a name is given and
// then "city, country". It returns nil when country or city is blank.
func Queries(city string, country string, name string) []string {
	co := CleanQuery(country)
	n := CleanQuery(name)
	variants := CityVariants(city)
	if co == "" || len(variants) == 0 {
		return nil
	}

	out := make([]string, 0, len(variants)*2)
	for _, variant := range variants {
		if n != "" {
			out = append(out, n+", "+variant+", "+co)
		}
		out = append(out, variant+", "+co)
	}
	return out
}

func dedupeFold(values []string, limit int) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, limit)
	for _, v := range values {
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// textLength counts UTF-16 code units, the unit city length thresholds use.
func textLength(value string) int {
	n := 0
	for _, r := range value {
		n += utf16.RuneLen(r)
	}
	return n
}
