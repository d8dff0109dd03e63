package partner

import (
	"regexp"
	"strings"
)

const languageChars = `[A-Za-zÅÄÖåäö\s()./-]`

var (
	notesColonLevelRe = regexp.MustCompile(`(?i)^(.*?)\s*:\s*(A2|B1|B2|C1|C2)\b`)
	trailingInLangRe  = regexp.MustCompile(`(?i)\bin\s+(` + languageChars + `+)$`)
	languageLevelRe   = regexp.MustCompile(`(?i)(` + languageChars + `+)\s+(A2|B1|B2|C1|C2)\b`)
	anyLevelRe        = regexp.MustCompile(`(?i)\b(A2|B1|B2|C1|C2)\b`)
	studiesInRe       = regexp.MustCompile(`(?i)\bstudies\s+in\s+(` + languageChars + `+)\b`)
)

type commonLanguage struct {
	pattern *regexp.Regexp
	name    string
}

var commonLanguages = func() []commonLanguage {
	names := []string{"English", "Swedish", "Finnish", "German", "French", "Spanish", "Italian", "Dutch", "Norwegian", "Danish"}
	out := make([]commonLanguage, 0, len(names))
	for _, name := range names {
		out = append(out, commonLanguage{
			pattern: regexp.MustCompile(`(?i)\b` + strings.ToLower(name) + `\b`),
			name:    name,
		})
	}
	return out
}()

type languageRule struct {
	name  string
	parse func(text string) ([]LanguageRequirement, bool)
}

// languageRules are evaluated top to bottom on the trimmed text; the first
// rule that applies produces the result.
var languageRules = []languageRule{
	{name: "notes colon level", parse: parseNotesColonLevel},
	{name: "language level", parse: parseLanguageLevel},
	{name: "embedded level", parse: parseEmbeddedLevel},
	{name: "no level", parse: parseWithoutLevel},
}

// ParseLanguageRequirements extracts language requirements from free text such
// as "English B2" or "Studies in Swedish: B2". Text without a CEFR level is
// kept as the language with level UNKNOWN.
func ParseLanguageRequirements(text string) []LanguageRequirement {
	t := clean(foldSpaces(text))
	if t == "" {
		return []LanguageRequirement{}
	}

	for _, rule := range languageRules {
		if reqs, ok := rule.parse(t); ok {
			return keepNamedLanguages(reqs)
		}
	}
	return []LanguageRequirement{}
}

func parseNotesColonLevel(t string) ([]LanguageRequirement, bool) {
	m := notesColonLevelRe.FindStringSubmatch(t)
	if m == nil {
		return nil, false
	}

	notes := strings.TrimSpace(m[1])
	language := notes
	if in := trailingInLangRe.FindStringSubmatch(notes); in != nil {
		language = in[1]
	}

	return []LanguageRequirement{{
		Language: strings.TrimSpace(language),
		Level:    strings.ToUpper(m[2]),
		Notes:    notes,
	}}, true
}

func parseLanguageLevel(t string) ([]LanguageRequirement, bool) {
	m := languageLevelRe.FindStringSubmatch(t)
	if m == nil {
		return nil, false
	}

	return []LanguageRequirement{{
		Language: strings.TrimSpace(m[1]),
		Level:    strings.ToUpper(m[2]),
	}}, true
}

func parseEmbeddedLevel(t string) ([]LanguageRequirement, bool) {
	m := anyLevelRe.FindStringSubmatch(t)
	if m == nil {
		return nil, false
	}

	language := ""
	if in := studiesInRe.FindStringSubmatch(t); in != nil {
		language = strings.TrimSpace(in[1])
	}
	if language == "" {
		language = commonLanguageIn(t)
	}
	if language == "" {
		language = t
	}

	return []LanguageRequirement{{
		Language: language,
		Level:    strings.ToUpper(m[1]),
		Notes:    t,
	}}, true
}

func parseWithoutLevel(t string) ([]LanguageRequirement, bool) {
	return []LanguageRequirement{{Language: t, Level: LevelUnknown}}, true
}

func commonLanguageIn(text string) string {
	for _, lang := range commonLanguages {
		if lang.pattern.MatchString(text) {
			return lang.name
		}
	}
	return ""
}

func keepNamedLanguages(reqs []LanguageRequirement) []LanguageRequirement {
	out := make([]LanguageRequirement, 0, len(reqs))
	for _, req := range reqs {
		if req.Language != "" {
			out = append(out, req)
		}
	}
	return out
}
