package partner

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	keyWhitespaceRe = regexp.MustCompile(`\s+`)
	keyDisallowedRe = regexp.MustCompile(`[^a-z0-9\-\s]`)
	keySpaceRe      = regexp.MustCompile(`\s`)
)

// MakeExternalKey derives the identity key "<name>|<country>|<city>" from
// slugified parts. An empty city is kept as an empty third part.
func MakeExternalKey(name string, country string, city string) string {
	return slugifyKeyPart(name) + "|" + slugifyKeyPart(country) + "|" + slugifyKeyPart(city)
}

// ResolveExternalKey prefers the key supplied by the source data.
func ResolveExternalKey(row NormalizedRow) string {
	if row.ExternalKey != "" {
		return row.ExternalKey
	}
	return MakeExternalKey(row.Name, row.Country, row.City)
}

func slugifyKeyPart(value string) string {
	v := foldSpaces(stripDiacritics(value))
	v = strings.TrimSpace(strings.ToLower(v))
	v = keyWhitespaceRe.ReplaceAllString(v, " ")
	v = strings.ReplaceAll(v, "|", "-")
	v = keyDisallowedRe.ReplaceAllString(v, "")
	return keySpaceRe.ReplaceAllString(v, "-")
}

func stripDiacritics(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}
