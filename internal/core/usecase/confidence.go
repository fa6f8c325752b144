package usecase

import (
	"regexp"
	"strconv"
)

const defaultConfidence = 0.5

// confidenceRule turns a regexp match into a raw confidence value.
type confidenceRule struct {
	Name    string
	Pattern *regexp.Regexp
	Extract func(groups []string) (float64, bool)
}

// confidenceRules are tried in order against prose without a CONFIDENCE label.
// Fraction forms come first so "8/10 confidence" is not read as "10 confidence".
var confidenceRules = []confidenceRule{
	{
		Name:    "score_fraction",
		Pattern: regexp.MustCompile(`(?i)confidence[:\s]*score[:\s]*(\d+)\s*/\s*(\d+)`),
		Extract: fractionGroups,
	},
	{
		Name:    "fraction_confidence",
		Pattern: regexp.MustCompile(`(?i)(\d+)\s*/\s*(\d+)\s*confidence`),
		Extract: fractionGroups,
	},
	{
		Name:    "level_fraction",
		Pattern: regexp.MustCompile(`(?i)(?:low|medium|high)\s*\(\s*(\d+)\s*/\s*(\d+)\s*\)`),
		Extract: fractionGroups,
	},
	{
		Name:    "score_value",
		Pattern: regexp.MustCompile(`(?i)confidence[:\s]*score[:\s]*(\d+(?:\.\d+)?)%?`),
		Extract: valueGroup,
	},
	{
		Name:    "labeled_value",
		Pattern: regexp.MustCompile(`(?i)confidence[:\s]*(\d+(?:\.\d+)?)%?`),
		Extract: valueGroup,
	},
	{
		Name:    "value_confidence",
		Pattern: regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)%?\s*confidence`),
		Extract: valueGroup,
	},
}

var (
	firstNumberPattern  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	leadingFractionExpr = regexp.MustCompile(`^\D*?(\d+(?:\.\d+)?)\s*/\s*(\d+(?:\.\d+)?)`)
)

// extractConfidence applies the rule table and returns the first match,
// normalized to [0,1].
func extractConfidence(text string) (float64, bool) {
	for _, rule := range confidenceRules {
		groups := rule.Pattern.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		if v, ok := rule.Extract(groups); ok {
			return normalizeConfidence(v), true
		}
	}
	return 0, false
}

// parseLabeledConfidence reads the value after a CONFIDENCE label: a
// leading fraction when present, otherwise the first number.
func parseLabeledConfidence(rest string) (float64, bool) {
	if groups := leadingFractionExpr.FindStringSubmatch(rest); groups != nil {
		if v, ok := fractionGroups(groups); ok {
			return normalizeConfidence(v), true
		}
	}
	token := firstNumberPattern.FindString(rest)
	if token == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return normalizeConfidence(v), true
}

func normalizeConfidence(v float64) float64 {
	if v > 1 {
		v /= 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func fractionGroups(groups []string) (float64, bool) {
	if len(groups) < 3 {
		return 0, false
	}
	num, err := strconv.ParseFloat(groups[1], 64)
	if err != nil {
		return 0, false
	}
	den, err := strconv.ParseFloat(groups[2], 64)
	if err != nil {
		return 0, false
	}
	if den == 0 {
		return 0, true
	}
	return num / den, true
}

func valueGroup(groups []string) (float64, bool) {
	if len(groups) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(groups[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
