package catalog

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"partnermap/internal/domain/partner"
)

// MaxPoints caps a single map query.
const MaxPoints = 3000

var ErrInvalidBBox = errors.New("missing or invalid bbox")

type mobilityGroup string

const (
	groupErasmus   mobilityGroup = "erasmus"
	groupNordplus  mobilityGroup = "nordplus"
	groupBilateral mobilityGroup = "bilateral"
	groupOther     mobilityGroup = "other"
)

var (
	erasmusRe   = regexp.MustCompile(`(?i)\berasmus\b|\beras mus\b`)
	nordplusRe  = regexp.MustCompile(`(?i)\bnordplus\b`)
	bilateralRe = regexp.MustCompile(`(?i)\bbilateral\b`)
	spacesRe    = regexp.MustCompile(`[\s\p{Z}\x{85}\x{FEFF}]+`)
)

// PointFilter is a parsed map query. Empty fields do not filter.
type PointFilter struct {
	West, South, East, North float64

	Continent string
	Country   string
	Status    string
	Mobility  []string
	Language  string
	Level     string
	Query     string
}

// ParseBBox reads "west,south,east,north".
func ParseBBox(raw string) (west, south, east, north float64, err error) {
	parts := strings.Split(raw, ",")
	if strings.TrimSpace(raw) == "" || len(parts) != 4 {
		return 0, 0, 0, 0, ErrInvalidBBox
	}
	var values [4]float64
	for i, part := range parts {
		v, perr := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if perr != nil || math.IsNaN(v) {
			return 0, 0, 0, 0, ErrInvalidBBox
		}
		values[i] = v
	}
	return values[0], values[1], values[2], values[3], nil
}

// scalar drops the "all" sentinel sent by the filter menus.
func scalar(value string) string {
	value = strings.TrimSpace(value)
	if value == "all" {
		return ""
	}
	return value
}

// SplitMobility splits the comma separated mobility parameter.
func SplitMobility(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func groupOf(value string) (mobilityGroup, bool) {
	switch strings.TrimSpace(spacesRe.ReplaceAllString(strings.ToLower(value), " ")) {
	case "erasmus":
		return groupErasmus, true
	case "nordplus":
		return groupNordplus, true
	case "bilateral", "bilateral agreement", "bilateral agreements":
		return groupBilateral, true
	case "other", "other exchange destinations":
		return groupOther, true
	}
	return "", false
}

func anyMatch(values []string, re *regexp.Regexp) bool {
	for _, v := range values {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

// mobilityMatcher returns nil when no mobility filter applies. Group names
// match by pattern; any other values need an exact programme match.
func mobilityMatcher(values []string) func(partner.School) bool {
	if len(values) == 0 {
		return nil
	}

	groups := map[mobilityGroup]bool{}
	for _, v := range values {
		if g, ok := groupOf(v); ok {
			groups[g] = true
		}
	}

	if len(groups) == 0 {
		exact := make(map[string]struct{}, len(values))
		for _, v := range values {
			exact[v] = struct{}{}
		}
		return func(s partner.School) bool {
			for _, p := range s.MobilityProgrammes {
				if _, ok := exact[p]; ok {
					return true
				}
			}
			return false
		}
	}

	return func(s partner.School) bool {
		programmes := s.MobilityProgrammes
		if groups[groupErasmus] && anyMatch(programmes, erasmusRe) {
			return true
		}
		if groups[groupNordplus] && anyMatch(programmes, nordplusRe) {
			return true
		}
		if groups[groupBilateral] && anyMatch(programmes, bilateralRe) {
			return true
		}
		if groups[groupOther] && !anyMatch(programmes, erasmusRe) &&
			!anyMatch(programmes, nordplusRe) && !anyMatch(programmes, bilateralRe) {
			return true
		}
		return false
	}
}

func languageMatcher(language string, level string) func(partner.School) bool {
	language, level = scalar(language), scalar(level)
	if language == "" && level == "" {
		return nil
	}
	return func(s partner.School) bool {
		for _, req := range s.LanguageRequirements {
			if (language == "" || req.Language == language) && (level == "" || req.Level == level) {
				return true
			}
		}
		return false
	}
}

func textMatcher(query string) func(partner.School) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
	return func(s partner.School) bool {
		return re.MatchString(s.Name) || re.MatchString(s.Country) || re.MatchString(s.City)
	}
}
