package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
)

const (
	CitationPolicyFixed   = "fixed"
	CitationPolicyOverlap = "overlap"

	fixedCitationScore = 0.8

	accuracyWeight    = 0.5
	citationWeight    = 0.3
	correlationWeight = 0.2
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonWordRune   = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
)

type EvaluationOptions struct {
	// PlaceholderGroundTruth synthesizes a marked ground truth for answers
	// that have none; otherwise those answers are reported ungraded.
	PlaceholderGroundTruth bool
	CitationPolicy         string
}

type EvaluateUseCase struct {
	projects    ports.ProjectRepository
	documents   ports.DocumentRepository
	groundTruth ports.GroundTruthRepository
	results     ports.EvaluationRepository
	opts        EvaluationOptions
}

func NewEvaluateUseCase(
	projects ports.ProjectRepository,
	documents ports.DocumentRepository,
	groundTruth ports.GroundTruthRepository,
	results ports.EvaluationRepository,
	opts EvaluationOptions,
) *EvaluateUseCase {
	if opts.CitationPolicy != CitationPolicyOverlap {
		opts.CitationPolicy = CitationPolicyFixed
	}
	return &EvaluateUseCase{
		projects:    projects,
		documents:   documents,
		groundTruth: groundTruth,
		results:     results,
		opts:        opts,
	}
}

func (uc *EvaluateUseCase) AddGroundTruth(ctx context.Context, questionID, answerText, source string) (*domain.GroundTruthAnswer, error) {
	questionID = strings.TrimSpace(questionID)
	answerText = strings.TrimSpace(answerText)
	if questionID == "" || answerText == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add ground truth", errors.New("question_id and answer_text are required"))
	}
	if source == "" {
		source = domain.GroundTruthSourceHuman
	}
	gt := &domain.GroundTruthAnswer{
		ID:         uuid.NewString(),
		QuestionID: questionID,
		AnswerText: answerText,
		Source:     source,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.groundTruth.SaveGroundTruth(ctx, gt); err != nil {
		return nil, fmt.Errorf("save ground truth: %w", err)
	}
	return gt, nil
}

// EvaluateProject replaces the project's previous results with a fresh
// evaluation of every answer.
func (uc *EvaluateUseCase) EvaluateProject(ctx context.Context, projectID string) ([]*domain.EvaluationResult, error) {
	project, err := uc.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if len(project.Answers) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate project", errors.New("project has no answers to evaluate"))
	}

	if err := uc.results.DeleteEvaluations(ctx, projectID); err != nil {
		return nil, fmt.Errorf("delete previous evaluations: %w", err)
	}

	out := make([]*domain.EvaluationResult, 0, len(project.Answers))
	for _, answer := range project.Answers {
		result, err := uc.evaluateAnswer(ctx, projectID, answer)
		if err != nil {
			return nil, err
		}
		if err := uc.results.SaveEvaluation(ctx, result); err != nil {
			return nil, fmt.Errorf("save evaluation: %w", err)
		}
		out = append(out, result)
	}
	return out, nil
}

func (uc *EvaluateUseCase) ListResults(ctx context.Context, projectID string) ([]*domain.EvaluationResult, error) {
	results, err := uc.results.ListEvaluations(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return results, nil
}

func (uc *EvaluateUseCase) Summary(ctx context.Context, projectID string) (domain.EvaluationSummary, error) {
	results, err := uc.ListResults(ctx, projectID)
	if err != nil {
		return domain.EvaluationSummary{}, err
	}
	return Summarize(results), nil
}

func (uc *EvaluateUseCase) evaluateAnswer(ctx context.Context, projectID string, answer domain.Answer) (*domain.EvaluationResult, error) {
	aiText := answer.EffectiveText()
	now := time.Now().UTC()

	gt, err := uc.groundTruth.GetGroundTruthByQuestion(ctx, answer.QuestionID)
	if err != nil && !domain.IsKind(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load ground truth: %w", err)
	}
	if gt == nil && uc.opts.PlaceholderGroundTruth {
		gt, err = uc.AddGroundTruth(ctx, answer.QuestionID, placeholderGroundTruth(aiText), domain.GroundTruthSourcePlaceholder)
		if err != nil {
			return nil, err
		}
	}

	if gt == nil {
		return &domain.EvaluationResult{
			ID:         uuid.NewString(),
			ProjectID:  projectID,
			QuestionID: answer.QuestionID,
			Graded:     false,
			AIAnswer:   aiText,
			Details: map[string]any{
				"reason": "no_ground_truth",
			},
			CreatedAt: now,
		}, nil
	}

	accuracy := TextSimilarity(aiText, gt.AnswerText)
	citation := uc.citationScore(ctx, answer)
	correlation := ConfidenceCorrelation(answer.ConfidenceScore, accuracy)
	overall := accuracy*accuracyWeight + citation*citationWeight + correlation*correlationWeight

	return &domain.EvaluationResult{
		ID:                         uuid.NewString(),
		ProjectID:                  projectID,
		QuestionID:                 answer.QuestionID,
		Graded:                     true,
		AIAnswer:                   aiText,
		GroundTruthAnswer:          gt.AnswerText,
		AccuracyScore:              round3(accuracy),
		CitationQualityScore:       round3(citation),
		ConfidenceCorrelationScore: round3(correlation),
		OverallScore:               round3(overall),
		Details: map[string]any{
			"similarity_method":               "sequence_matcher",
			"citation_policy":                 uc.opts.CitationPolicy,
			"confidence_accuracy_correlation": math.Abs(answer.ConfidenceScore - accuracy),
			"ai_answer_length":                len([]rune(aiText)),
			"ground_truth_length":             len([]rune(gt.AnswerText)),
			"ground_truth_source":             gt.Source,
			"placeholder_ground_truth":        gt.Placeholder(),
		},
		CreatedAt: now,
	}, nil
}

func (uc *EvaluateUseCase) citationScore(ctx context.Context, answer domain.Answer) float64 {
	if uc.opts.CitationPolicy != CitationPolicyOverlap {
		return fixedCitationScore
	}
	if len(answer.Citations) == 0 {
		return 0
	}

	docs := make(map[string]*domain.Document)
	total := 0.0
	for _, citation := range answer.Citations {
		if citation.DocumentID == "" || citation.ChunkID == "" {
			continue
		}
		doc, ok := docs[citation.DocumentID]
		if !ok {
			loaded, err := uc.documents.GetDocument(ctx, citation.DocumentID)
			if err != nil {
				loaded = nil
			}
			docs[citation.DocumentID] = loaded
			doc = loaded
		}
		if doc == nil {
			continue
		}
		for _, chunk := range doc.Chunks {
			if chunk.ID == citation.ChunkID {
				total += tokenOverlap(contentTokens(citation.Text), toTokenSet(chunk.Text))
				break
			}
		}
	}
	return total / float64(len(answer.Citations))
}

// TextSimilarity is the sequence-alignment ratio of the normalized texts.
func TextSimilarity(a, b string) float64 {
	left := runeStrings(normalizeForComparison(a))
	right := runeStrings(normalizeForComparison(b))
	if len(left) == 0 && len(right) == 0 {
		return 1
	}
	return difflib.NewMatcher(left, right).Ratio()
}

// ConfidenceCorrelation is 1 - |confidence - accuracy|, floored at 0.
func ConfidenceCorrelation(confidence, accuracy float64) float64 {
	return math.Max(0, 1-math.Abs(confidence-accuracy))
}

// Summarize averages graded results; ungraded ones only count toward the total.
func Summarize(results []*domain.EvaluationResult) domain.EvaluationSummary {
	summary := domain.EvaluationSummary{TotalQuestions: len(results)}
	var accuracy, citation, correlation, overall float64
	for _, r := range results {
		if !r.Graded {
			continue
		}
		summary.EvaluatedQuestions++
		accuracy += r.AccuracyScore
		citation += r.CitationQualityScore
		correlation += r.ConfidenceCorrelationScore
		overall += r.OverallScore
	}
	if summary.EvaluatedQuestions == 0 {
		return summary
	}
	n := float64(summary.EvaluatedQuestions)
	summary.AverageAccuracy = round3(accuracy / n)
	summary.AverageCitationQuality = round3(citation / n)
	summary.AverageConfidenceCorrelation = round3(correlation / n)
	summary.AverageOverallScore = round3(overall / n)
	return summary
}

func normalizeForComparison(text string) string {
	text = strings.ToLower(text)
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	return nonWordRune.ReplaceAllString(text, "")
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func placeholderGroundTruth(aiText string) string {
	runes := []rune(aiText)
	if len(runes) > 50 {
		runes = runes[:50]
	}
	return fmt.Sprintf("Placeholder ground truth answer for question about: %s...", string(runes))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
