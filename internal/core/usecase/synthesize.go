package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
)

const (
	synthesisSystemPrompt = "You are a helpful assistant that answers questions based on provided documents. Always cite your sources and provide confidence scores."
	noExcerptsContext     = "No relevant document excerpts found for this question."
	missingDataPhrase     = "no relevant information"
	missingDataThreshold  = 0.3

	defaultSynthesisTemperature = 0.1
	defaultSynthesisMaxTokens   = 500
)

var errEmptyCompletion = errors.New("empty completion")

type SynthesisOptions struct {
	Temperature float64
	MaxTokens   int
}

type SynthesizeUseCase struct {
	completer ports.Completer
	opts      SynthesisOptions
}

func NewSynthesizeUseCase(completer ports.Completer, opts SynthesisOptions) *SynthesizeUseCase {
	if opts.Temperature < 0 {
		opts.Temperature = defaultSynthesisTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultSynthesisMaxTokens
	}
	return &SynthesizeUseCase{completer: completer, opts: opts}
}

// Synthesize never fails: backend errors become a MISSING_DATA answer.
func (uc *SynthesizeUseCase) Synthesize(ctx context.Context, question domain.Question, results []domain.SearchResult) domain.Answer {
	completion, err := uc.completer.Complete(ctx, domain.CompletionRequest{
		SystemPrompt: synthesisSystemPrompt,
		UserPrompt:   buildSynthesisPrompt(question.Text, results),
		Temperature:  uc.opts.Temperature,
		MaxTokens:    uc.opts.MaxTokens,
	})
	if err == nil && strings.TrimSpace(completion.Text) == "" {
		err = errEmptyCompletion
	}
	if err != nil {
		return failedAnswer(question.ID, err)
	}

	parsed := parseCompletion(completion.Text)
	answer := domain.Answer{
		ID:              uuid.NewString(),
		QuestionID:      question.ID,
		AnswerText:      parsed.Answer,
		Citations:       resolveCitations(parsed.Citations, results),
		ConfidenceScore: parsed.Confidence,
		Status:          domain.AnswerGenerated,
	}
	if answer.AnswerText == "" {
		answer.AnswerText = "No answer could be parsed from the model response."
		answer.ConfidenceScore = 0
	}
	applyMissingDataPolicy(&answer)
	return answer
}

func buildSynthesisPrompt(question string, results []domain.SearchResult) string {
	excerpts := noExcerptsContext
	if len(results) > 0 {
		parts := make([]string, 0, len(results))
		for _, r := range results {
			parts = append(parts, r.Text)
		}
		excerpts = strings.Join(parts, "\n\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following document excerpts, answer the question: %q\n\n", question)
	b.WriteString("Document excerpts:\n")
	b.WriteString(excerpts)
	b.WriteString("\n\nPlease provide:\n")
	b.WriteString("1. A concise answer to the question\n")
	b.WriteString("2. Citations to specific parts of the documents that support your answer\n")
	b.WriteString("3. A confidence score between 0.0 and 1.0 indicating how confident you are in the answer\n\n")
	b.WriteString("If the excerpts do not contain the answer, say \"No relevant information found\".\n\n")
	b.WriteString("Format your response as:\n")
	b.WriteString("ANSWER: [your answer]\n")
	b.WriteString("CITATIONS: [list of citations]\n")
	b.WriteString("CONFIDENCE: [score]\n")
	return b.String()
}

func applyMissingDataPolicy(answer *domain.Answer) {
	if strings.Contains(strings.ToLower(answer.AnswerText), missingDataPhrase) ||
		answer.ConfidenceScore < missingDataThreshold {
		answer.Status = domain.AnswerMissingData
		answer.ConfidenceScore = 0
		return
	}
	answer.Status = domain.AnswerGenerated
}

func failedAnswer(questionID string, err error) domain.Answer {
	return domain.Answer{
		ID:              uuid.NewString(),
		QuestionID:      questionID,
		AnswerText:      fmt.Sprintf("Unable to generate answer: %v", err),
		Citations:       []domain.Citation{},
		ConfidenceScore: 0,
		Status:          domain.AnswerMissingData,
	}
}

// resolveCitations binds each cited excerpt to the retrieved chunk it
// overlaps most; excerpts with no overlap keep empty references.
func resolveCitations(excerpts []string, results []domain.SearchResult) []domain.Citation {
	out := make([]domain.Citation, 0, len(excerpts))
	for _, excerpt := range excerpts {
		citation := domain.Citation{Text: excerpt}
		excerptTokens := contentTokens(excerpt)
		best := 0.0
		for _, r := range results {
			score := tokenOverlap(excerptTokens, toTokenSet(r.Text))
			if score > best {
				best = score
				citation.DocumentID = r.Metadata.DocumentID
				citation.ChunkID = r.ChunkID
			}
		}
		out = append(out, citation)
	}
	return out
}
