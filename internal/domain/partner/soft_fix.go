package partner

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxDiagnostics bounds the row errors and warnings kept on a job record.
const MaxDiagnostics = 200

const snippetLimit = 180

var agreementScopeTextRe = regexp.MustCompile(`(?i)\bagreement\b|\bgeneral agreement\b|\bsopimus\b|\bscope\b`)

// LooksLikeAgreementScope reports whether text reads like agreement scope prose.
func LooksLikeAgreementScope(text string) bool {
	return agreementScopeTextRe.MatchString(text)
}

// ScopeFix is the outcome of the agreement scope soft fix for one row.
type ScopeFix struct {
	AgreementScope string
	Applied        bool
	CopiedText     string
}

// FixAgreementScope copies degree programme text into an empty agreement scope
// when the degree text looks like scope prose. The degree list is not touched.
func FixAgreementScope(row NormalizedRow, raw RawRow) ScopeFix {
	rawScope := strings.TrimSpace(raw.AgreementScope)
	degreeText := strings.TrimSpace(raw.DegreeText)

	if row.AgreementScope == "" && rawScope == "" && degreeText != "" && LooksLikeAgreementScope(degreeText) {
		return ScopeFix{AgreementScope: degreeText, Applied: true, CopiedText: degreeText}
	}
	return ScopeFix{AgreementScope: row.AgreementScope}
}

func (f ScopeFix) WarningMessage() string {
	return fmt.Sprintf(
		"Soft fix: copied degree programme text into agreement scope because agreement scope was empty and the degree text looked like agreement scope. Copied text: %q. Original degree value preserved.",
		Snippet(f.CopiedText),
	)
}

// UnknownLevelWarning describes languages left at level UNKNOWN.
func UnknownLevelWarning(languages []string) string {
	if len(languages) > 5 {
		languages = languages[:5]
	}
	listed := strings.Join(languages, ", ")
	if listed == "" {
		listed = "unknown language"
	}
	return fmt.Sprintf("Language requirement missing CEFR level; set to UNKNOWN. (%s)", listed)
}

// Snippet truncates text to 180 characters, marking the cut with an ellipsis.
func Snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetLimit {
		return text
	}
	return string([]rune(text)[:snippetLimit]) + "…"
}
