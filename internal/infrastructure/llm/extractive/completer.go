// Package extractive is an offline completion backend. It answers with the
// excerpt sentence that best overlaps the question, in the labeled
// ANSWER/CITATIONS/CONFIDENCE layout the synthesizer parses.
package extractive

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

const (
	providerName     = "extractive"
	questionMarker   = "answer the question: "
	excerptsMarker   = "Document excerpts:\n"
	instructionsMark = "\n\nPlease provide:"
	noInformation    = "No relevant information found"
)

type Completer struct{}

func New() *Completer {
	return &Completer{}
}

func (c *Completer) Capabilities() domain.CompletionCapabilities {
	return domain.CompletionCapabilities{Provider: providerName}
}

func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	if err := ctx.Err(); err != nil {
		return domain.Completion{}, err
	}
	question, excerpts := splitPrompt(req.UserPrompt)

	sentence, overlap := bestSentence(question, excerpts)
	text := fmt.Sprintf("ANSWER: %s\nCITATIONS: none\nCONFIDENCE: 0.0", noInformation)
	if overlap > 0 {
		confidence := 0.5 + 0.4*overlap
		text = fmt.Sprintf("ANSWER: %s\nCITATIONS: %s\nCONFIDENCE: %.2f", sentence, sentence, confidence)
	}
	return domain.Completion{Text: text, Provider: providerName, Model: providerName}, nil
}

func splitPrompt(prompt string) (string, string) {
	var question string
	if i := strings.Index(prompt, questionMarker); i >= 0 {
		line := prompt[i+len(questionMarker):]
		if end := strings.IndexByte(line, '\n'); end >= 0 {
			line = line[:end]
		}
		if unquoted, err := strconv.Unquote(strings.TrimSpace(line)); err == nil {
			question = unquoted
		} else {
			question = strings.Trim(line, `" `)
		}
	}

	var excerpts string
	if i := strings.Index(prompt, excerptsMarker); i >= 0 {
		excerpts = prompt[i+len(excerptsMarker):]
		if end := strings.Index(excerpts, instructionsMark); end >= 0 {
			excerpts = excerpts[:end]
		}
	}
	return question, excerpts
}

// bestSentence returns the sentence covering the largest share of the
// question's words, with that share.
func bestSentence(question, excerpts string) (string, float64) {
	want := words(question)
	if len(want) == 0 {
		return "", 0
	}
	best, bestScore := "", 0.0
	for _, sentence := range sentences(excerpts) {
		have := words(sentence)
		hits := 0
		for w := range want {
			if _, ok := have[w]; ok {
				hits++
			}
		}
		score := float64(hits) / float64(len(want))
		if score > bestScore {
			best, bestScore = sentence, score
		}
	}
	return best, bestScore
}

func sentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		end := r == '\n'
		if r == '.' || r == '!' || r == '?' {
			// "$4.2" is not a sentence boundary.
			end = i+1 == len(text) || unicode.IsSpace(rune(text[i+1]))
		}
		if end {
			if s := strings.TrimSpace(text[start : i+1]); len(s) > 1 {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func words(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) < 3 || stopwords[f] {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "what": true, "which": true,
	"does": true, "how": true, "with": true, "from": true, "this": true, "that": true,
	"your": true, "you": true, "any": true, "has": true, "have": true, "was": true,
	"were": true, "please": true, "describe": true, "provide": true, "there": true,
}
