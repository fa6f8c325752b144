package usecase

import (
	"regexp"
	"strings"
)

const (
	labelAnswer     = "ANSWER"
	labelCitations  = "CITATIONS"
	labelConfidence = "CONFIDENCE"
)

type parsedResponse struct {
	Answer     string
	Citations  []string
	Confidence float64
}

var (
	residualLabelLine  = regexp.MustCompile(`(?im)^[ \t]*[*#_]*[ \t]*(confidence(?:[ \t]+score)?|citations?|sources?)[ \t]*[*_]*[ \t]*:.*$`)
	residualAnswerHead = regexp.MustCompile(`(?im)^[ \t]*[*#_]*[ \t]*answer[ \t]*[*_]*[ \t]*:[ \t]*[*_]*[ \t]*`)
	inlineConfidence   = regexp.MustCompile(`(?i)[(\[]?[*_]*confidence[*_]*(?:[ \t]+score)?[:\s]*\d+(?:\.\d+)?%?[)\]]?`)
	trailingConfidence = regexp.MustCompile(`(?i)[(\[]?[*_]*\d+(?:\.\d+)?%?[ \t]*confidence[*_]*[)\]]?`)
	blankRuns          = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+\n`)
	citationBullet     = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s*`)
)

// parseCompletion reads the labeled ANSWER/CITATIONS/CONFIDENCE layout.
// Labels match case-sensitively, optionally wrapped in bold markup, and a
// section runs until the next label. Without an ANSWER label the text before
// the first label is the answer.
func parseCompletion(raw string) parsedResponse {
	var (
		answerLines []string
		preamble    []string
		citations   []string
		section     string
		labeledConf bool
		sawAnswer   bool
		confidence  float64
	)

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if label, rest, ok := splitLabel(trimmed); ok {
			section = label
			switch label {
			case labelAnswer:
				sawAnswer = true
				if rest != "" {
					answerLines = append(answerLines, rest)
				}
			case labelCitations:
				if c := cleanCitation(rest); c != "" {
					citations = append(citations, c)
				}
			case labelConfidence:
				if v, ok := parseLabeledConfidence(rest); ok && !labeledConf {
					confidence, labeledConf = v, true
				}
			}
			continue
		}

		switch section {
		case "":
			preamble = append(preamble, trimmed)
		case labelAnswer:
			answerLines = append(answerLines, trimmed)
		case labelCitations:
			if c := cleanCitation(trimmed); c != "" {
				citations = append(citations, c)
			}
		case labelConfidence:
			if trimmed == "" || labeledConf {
				continue
			}
			if v, ok := parseLabeledConfidence(trimmed); ok {
				confidence, labeledConf = v, true
			}
		}
	}

	answer := strings.Join(answerLines, "\n")
	if !sawAnswer {
		answer = strings.Join(preamble, "\n")
	}

	if !labeledConf {
		if v, ok := extractConfidence(raw); ok {
			confidence = v
		} else {
			confidence = defaultConfidence
		}
	}

	return parsedResponse{
		Answer:     cleanAnswerText(answer),
		Citations:  citations,
		Confidence: confidence,
	}
}

// splitLabel recognizes "LABEL: rest" and "**LABEL:** rest".
func splitLabel(line string) (string, string, bool) {
	body := strings.TrimLeft(line, "*#_ ")
	for _, label := range []string{labelAnswer, labelCitations, labelConfidence} {
		prefix := label + ":"
		boldPrefix := label + "**:"
		switch {
		case strings.HasPrefix(body, prefix):
			return label, strings.TrimSpace(strings.TrimLeft(body[len(prefix):], "*_ ")), true
		case strings.HasPrefix(body, boldPrefix):
			return label, strings.TrimSpace(strings.TrimLeft(body[len(boldPrefix):], "*_ ")), true
		}
	}
	return "", "", false
}

func cleanAnswerText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = residualLabelLine.ReplaceAllString(text, "")
	text = residualAnswerHead.ReplaceAllString(text, "")
	text = inlineConfidence.ReplaceAllString(text, "")
	text = trailingConfidence.ReplaceAllString(text, "")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func cleanCitation(line string) string {
	line = strings.TrimSpace(citationBullet.ReplaceAllString(strings.TrimSpace(line), ""))
	line = strings.Trim(line, "[]\"' ")
	switch strings.ToLower(line) {
	case "", "none", "n/a", "na", "-", "list of citations":
		return ""
	}
	return line
}
