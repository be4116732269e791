package trends

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	sentimentPattern = labelPattern(`Sentiment`)
	categoryPattern  = labelPattern(`Category`)
	riskPattern      = labelPattern(`Escalation\s*Risk`)
	digitsPattern    = regexp.MustCompile(`\d+`)
)

// labelPattern matches a line that starts with "Label: value". Leading indentation, list
// markers, headings and markdown emphasis are skipped, so a label mentioned in prose or
// embedded in a longer word ("Subcategory") does not match. The value runs to the end of
// the same line.
func labelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t>#*_+\d.)-]*` + label + `[*_]*[ \t]*:[ \t]*[*_]*[ \t]*([^\r\n]*)`)
}

// Fields are the values derived from one record's analysis text. Empty strings and
// HasRisk=false mean the label was absent or blank.
type Fields struct {
	Sentiment string
	Category  string
	// Risk is the escalation risk percentage, always within 0-100. Larger numbers in
	// the text are treated as unreadable and leave HasRisk false.
	Risk      int
	HasRisk   bool
}

// Extract pulls sentiment, category and escalation risk out of free-text analysis.
// It never fails; anything it cannot read is left missing.
func Extract(analysis string) Fields {
	f := Fields{
		Sentiment: labelValue(sentimentPattern, analysis),
		Category:  labelValue(categoryPattern, analysis),
	}
	f.Risk, f.HasRisk = riskValue(analysis)
	return f
}

func labelValue(re *regexp.Regexp, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.Trim(m[1], " \t*_")
}

// riskValue reads the first run of digits after the escalation label. Values outside
// 0-100 are treated as unreadable.
func riskValue(text string) (int, bool) {
	raw := labelValue(riskPattern, text)
	if raw == "" {
		return 0, false
	}
	digits := digitsPattern.FindString(raw)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n > 100 {
		return 0, false
	}
	return n, true
}
