package ports

import (
	"context"
	"io"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

// Retriever returns ranked chunks for a query using the cascading strategy.
type Retriever interface {
	Search(ctx context.Context, query string, k int, filter domain.SearchFilter) (domain.SearchOutcome, error)
}

// AnswerSynthesizer turns retrieved context into a structured answer.
// Backend failures are folded into a MISSING_DATA answer.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, question domain.Question, results []domain.SearchResult) domain.Answer
}

// QuestionAnswerer answers one question within a project scope.
type QuestionAnswerer interface {
	AnswerQuestion(ctx context.Context, scope domain.ProjectScope, question domain.Question) domain.Answer
}

// DocumentService is the inbound contract for document upload and indexing.
type DocumentService interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
	IndexDocument(ctx context.Context, documentID string) (*domain.Document, error)
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context) ([]*domain.Document, error)
}

// ProjectService is the inbound contract for project lifecycle and answer review.
type ProjectService interface {
	CreateProject(ctx context.Context, input domain.CreateProjectPayload) (*domain.Project, error)
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context) ([]*domain.Project, error)
	UpdateProject(ctx context.Context, id string) (*domain.Project, error)
	GenerateSingleAnswer(ctx context.Context, projectID, questionID string) (*domain.Answer, error)
	UpdateAnswer(ctx context.Context, projectID, answerID string, update domain.AnswerUpdate) (*domain.Answer, error)
}

// AnswerGenerator runs synthesis across every question of a project.
type AnswerGenerator interface {
	GenerateAll(ctx context.Context, projectID string, onProgress func(domain.Progress)) ([]domain.Answer, error)
	Stream(ctx context.Context, projectID string, emit func(domain.BatchEvent)) ([]domain.Answer, error)
}

// RequestService submits and reports async requests.
type RequestService interface {
	Submit(ctx context.Context, reqType domain.RequestType, payload any) (*domain.Request, error)
	GetRequest(ctx context.Context, id string) (*domain.Request, error)
	ListRequests(ctx context.Context) ([]*domain.Request, error)
}

// RequestProcessor executes a persisted request by id.
type RequestProcessor interface {
	ProcessByID(ctx context.Context, requestID string) error
}

// EvaluationService scores answers against ground truth.
type EvaluationService interface {
	AddGroundTruth(ctx context.Context, questionID, answerText, source string) (*domain.GroundTruthAnswer, error)
	EvaluateProject(ctx context.Context, projectID string) ([]*domain.EvaluationResult, error)
	ListResults(ctx context.Context, projectID string) ([]*domain.EvaluationResult, error)
	Summary(ctx context.Context, projectID string) (domain.EvaluationSummary, error)
}

// RequestTracker records requests executed inline by the caller, such as a
// streamed answer run.
type RequestTracker interface {
	Begin(ctx context.Context, reqType domain.RequestType, payload any) (*domain.Request, error)
	ReportProgress(ctx context.Context, req *domain.Request, progress domain.Progress) error
	Finish(ctx context.Context, req *domain.Request, result any, runErr error) error
}
