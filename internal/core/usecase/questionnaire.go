package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

const (
	defaultMaxQuestions = 50
	minQuestionLength   = 10
	defaultSectionLabel = "General"
)

var (
	detailedHeader       = regexp.MustCompile(`(\d+\.\d+)\s+`)
	detailedTerminator   = regexp.MustCompile(`\d+\.\d+|\n\n`)
	simpleNumbered       = regexp.MustCompile(`(\d+)\.\s+(.+)`)
	trailingCheckboxes   = regexp.MustCompile(`\s*☐\s*☐\s*$`)
	interrogativeOpeners = []string{"Does", "Has", "What", "Is", "Are", "How", "Why", "When", "Where", "Who"}
)

type sectionRule struct {
	Label    string
	Keywords []string
}

// sectionRules are checked in order; the first rule with a keyword in the
// lowercased question wins.
var sectionRules = []sectionRule{
	{Label: "Financial", Keywords: []string{"financial", "valuation", "accounting", "reporting", "revenue"}},
	{Label: "Legal", Keywords: []string{"legal", "litigation", "lawsuit", "contract", "administration"}},
	{Label: "Operations", Keywords: []string{"operation", "business", "market", "team", "fund terms"}},
	{Label: "Governance", Keywords: []string{"governance", "risk", "compliance"}},
	{Label: "ESG", Keywords: []string{"esg", "environmental", "social", "diversity", "inclusion"}},
}

// QuestionnaireParser extracts numbered questions from questionnaire text.
type QuestionnaireParser struct {
	MaxQuestions int
}

func NewQuestionnaireParser(maxQuestions int) *QuestionnaireParser {
	if maxQuestions <= 0 {
		maxQuestions = defaultMaxQuestions
	}
	return &QuestionnaireParser{MaxQuestions: maxQuestions}
}

// Parse returns the accepted questions in document order, or the default
// question set when nothing is accepted.
func (p *QuestionnaireParser) Parse(raw string) []domain.Question {
	questions := p.extract(raw)
	if len(questions) == 0 {
		return DefaultQuestions()
	}
	return questions
}

func (p *QuestionnaireParser) extract(raw string) []domain.Question {
	candidates := findDetailedQuestions(raw)
	if len(candidates) == 0 {
		for _, m := range simpleNumbered.FindAllStringSubmatch(raw, -1) {
			candidates = append(candidates, m[2])
		}
	}

	out := make([]domain.Question, 0, min(len(candidates), p.MaxQuestions))
	for _, candidate := range candidates {
		if len(out) == p.MaxQuestions {
			break
		}
		text, ok := acceptQuestion(candidate)
		if !ok {
			continue
		}
		out = append(out, domain.Question{
			ID:      uuid.NewString(),
			Section: classifySection(text),
			Text:    text,
			Order:   len(out) + 1,
		})
	}
	return out
}

// findDetailedQuestions scans for "N.N body" items. A body is at least one
// character and ends before the next N.N token, a blank line, or the end
// of the text (ignoring one trailing newline).
func findDetailedQuestions(text string) []string {
	var out []string
	pos := 0
	for pos < len(text) {
		loc := detailedHeader.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		bodyStart := pos + loc[1]
		if bodyStart >= len(text) {
			break
		}
		_, width := utf8.DecodeRuneInString(text[bodyStart:])
		searchFrom := bodyStart + width

		end := len(text)
		if t := detailedTerminator.FindStringIndex(text[searchFrom:]); t != nil {
			end = searchFrom + t[0]
		}
		if strings.HasSuffix(text, "\n") && searchFrom <= len(text)-1 && end > len(text)-1 {
			end = len(text) - 1
		}
		out = append(out, text[bodyStart:end])
		pos = end
	}
	return out
}

func acceptQuestion(candidate string) (string, bool) {
	text := strings.ReplaceAll(strings.TrimSpace(candidate), "\n", " ")
	if len(text) <= minQuestionLength {
		return "", false
	}
	interrogative := startsInterrogative(text)
	if !strings.Contains(text, "?") && !interrogative {
		return "", false
	}
	if strings.Contains(text, ":") && !interrogative {
		return "", false
	}
	text = trailingCheckboxes.ReplaceAllString(text, "")
	return text, text != ""
}

func startsInterrogative(text string) bool {
	for _, opener := range interrogativeOpeners {
		if strings.HasPrefix(text, opener) {
			return true
		}
	}
	return false
}

func classifySection(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range sectionRules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(lower, keyword) {
				return rule.Label
			}
		}
	}
	return defaultSectionLabel
}

// DefaultQuestions is the fallback questionnaire.
func DefaultQuestions() []domain.Question {
	seed := []struct{ section, text string }{
		{"General", "What is the company name?"},
		{"Financial", "What is the revenue?"},
		{"Legal", "Are there any pending lawsuits?"},
		{"Operations", "What is the business model?"},
		{"Financial", "What are the key financial metrics?"},
	}
	out := make([]domain.Question, 0, len(seed))
	for i, q := range seed {
		out = append(out, domain.Question{
			ID:      uuid.NewString(),
			Section: q.section,
			Text:    q.text,
			Order:   i + 1,
		})
	}
	return out
}
