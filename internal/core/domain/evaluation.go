package domain

import "time"

const (
	GroundTruthSourceHuman       = "human_expert"
	GroundTruthSourcePlaceholder = "placeholder_auto_generated"
)

type GroundTruthAnswer struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	AnswerText string    `json:"answer_text"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

func (g GroundTruthAnswer) Placeholder() bool {
	return g.Source == GroundTruthSourcePlaceholder
}

type EvaluationResult struct {
	ID                         string         `json:"id"`
	ProjectID                  string         `json:"project_id"`
	QuestionID                 string         `json:"question_id"`
	Graded                     bool           `json:"graded"`
	AIAnswer                   string         `json:"ai_answer"`
	GroundTruthAnswer          string         `json:"ground_truth_answer,omitempty"`
	AccuracyScore              float64        `json:"accuracy_score"`
	CitationQualityScore       float64        `json:"citation_quality_score"`
	ConfidenceCorrelationScore float64        `json:"confidence_correlation_score"`
	OverallScore               float64        `json:"overall_score"`
	Details                    map[string]any `json:"evaluation_details"`
	CreatedAt                  time.Time      `json:"created_at"`
}

type EvaluationSummary struct {
	TotalQuestions               int     `json:"total_questions"`
	EvaluatedQuestions           int     `json:"evaluated_questions"`
	AverageAccuracy              float64 `json:"average_accuracy"`
	AverageCitationQuality       float64 `json:"average_citation_quality"`
	AverageConfidenceCorrelation float64 `json:"average_confidence_correlation"`
	AverageOverallScore          float64 `json:"average_overall_score"`
}
