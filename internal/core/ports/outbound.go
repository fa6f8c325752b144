package ports

import (
	"context"
	"io"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

// ProjectRepository persists projects with their questions and answers.
type ProjectRepository interface {
	SaveProject(ctx context.Context, project *domain.Project) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context) ([]*domain.Project, error)
}

// DocumentRepository persists documents and their chunks.
// ListDocuments returns documents in creation order.
type DocumentRepository interface {
	SaveDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context) ([]*domain.Document, error)
}

// RequestRepository persists async request state.
type RequestRepository interface {
	SaveRequest(ctx context.Context, req *domain.Request) error
	GetRequest(ctx context.Context, id string) (*domain.Request, error)
	ListRequests(ctx context.Context) ([]*domain.Request, error)
}

type GroundTruthRepository interface {
	SaveGroundTruth(ctx context.Context, gt *domain.GroundTruthAnswer) error
	GetGroundTruthByQuestion(ctx context.Context, questionID string) (*domain.GroundTruthAnswer, error)
}

type EvaluationRepository interface {
	SaveEvaluation(ctx context.Context, result *domain.EvaluationResult) error
	ListEvaluations(ctx context.Context, projectID string) ([]*domain.EvaluationResult, error)
	DeleteEvaluations(ctx context.Context, projectID string) error
}

// Store groups every repository a single backend provides.
type Store interface {
	ProjectRepository
	DocumentRepository
	RequestRepository
	GroundTruthRepository
	EvaluationRepository
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue carries request ids from submitters to job processors.
type MessageQueue interface {
	PublishRequest(ctx context.Context, requestID string) error
	SubscribeRequests(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Embedder builds deterministic fixed-length vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into overlapping segments.
type Chunker interface {
	Split(text string) []domain.TextSegment
}

// VectorStore indexes chunks and performs semantic search.
type VectorStore interface {
	IndexChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error)
}

// Completer is the language model backend.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
	Capabilities() domain.CompletionCapabilities
}

// WorkerPool runs submitted tasks on a bounded set of workers.
type WorkerPool interface {
	Submit(task func()) error
	Release()
}

// WorkerPoolFactory builds a pool with the given number of workers.
type WorkerPoolFactory func(size int) (WorkerPool, error)
