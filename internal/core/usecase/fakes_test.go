package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
)

type storeFake struct {
	mu          sync.Mutex
	projects    map[string]*domain.Project
	documents   map[string]*domain.Document
	docOrder    []string
	requests    map[string]*domain.Request
	groundTruth map[string]*domain.GroundTruthAnswer
	evaluations map[string][]*domain.EvaluationResult
	saveErr     error
}

func newStoreFake() *storeFake {
	return &storeFake{
		projects:    map[string]*domain.Project{},
		documents:   map[string]*domain.Document{},
		requests:    map[string]*domain.Request{},
		groundTruth: map[string]*domain.GroundTruthAnswer{},
		evaluations: map[string][]*domain.EvaluationResult{},
	}
}

func (s *storeFake) SaveProject(_ context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.projects[p.ID] = p.Clone()
	return nil
}

func (s *storeFake) GetProject(_ context.Context, id string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return p.Clone(), nil
}

func (s *storeFake) ListProjects(context.Context) ([]*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (s *storeFake) SaveDocument(_ context.Context, d *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[d.ID]; !ok {
		s.docOrder = append(s.docOrder, d.ID)
	}
	s.documents[d.ID] = d.Clone()
	return nil
}

func (s *storeFake) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return d.Clone(), nil
}

func (s *storeFake) ListDocuments(context.Context) ([]*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Document, 0, len(s.docOrder))
	for _, id := range s.docOrder {
		out = append(out, s.documents[id].Clone())
	}
	return out, nil
}

func (s *storeFake) SaveRequest(_ context.Context, r *domain.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r.Clone()
	return nil
}

func (s *storeFake) GetRequest(_ context.Context, id string) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return r.Clone(), nil
}

func (s *storeFake) ListRequests(context.Context) ([]*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Request, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *storeFake) SaveGroundTruth(_ context.Context, gt *domain.GroundTruthAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyGT := *gt
	s.groundTruth[gt.QuestionID] = &copyGT
	return nil
}

func (s *storeFake) GetGroundTruthByQuestion(_ context.Context, questionID string) (*domain.GroundTruthAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gt, ok := s.groundTruth[questionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copyGT := *gt
	return &copyGT, nil
}

func (s *storeFake) SaveEvaluation(_ context.Context, r *domain.EvaluationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyR := *r
	s.evaluations[r.ProjectID] = append(s.evaluations[r.ProjectID], &copyR)
	return nil
}

func (s *storeFake) ListEvaluations(_ context.Context, projectID string) ([]*domain.EvaluationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.EvaluationResult(nil), s.evaluations[projectID]...), nil
}

func (s *storeFake) DeleteEvaluations(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.evaluations, projectID)
	return nil
}

var _ ports.Store = (*storeFake)(nil)

type completerFake struct {
	mu       sync.Mutex
	text     string
	err      error
	caps     domain.CompletionCapabilities
	requests []domain.CompletionRequest
}

func (f *completerFake) Complete(_ context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return domain.Completion{}, f.err
	}
	return domain.Completion{Text: f.text}, nil
}

func (f *completerFake) Capabilities() domain.CompletionCapabilities { return f.caps }

type embedderFake struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i + 1)}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1}, nil
}

type vectorFake struct {
	indexed  []domain.Chunk
	results  []domain.SearchResult
	searches int
	err      error
}

func (f *vectorFake) IndexChunks(_ context.Context, chunks []domain.Chunk, _ [][]float32) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, chunks...)
	return nil
}

func (f *vectorFake) Search(context.Context, []float32, int, domain.SearchFilter) ([]domain.SearchResult, error) {
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type chunkerFake struct{}

// Split emits one segment per paragraph.
func (chunkerFake) Split(text string) []domain.TextSegment {
	var out []domain.TextSegment
	offset := 0
	for _, part := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(part) != "" {
			out = append(out, domain.TextSegment{Index: len(out), Text: part, Offset: offset})
		}
		offset += len(part) + 2
	}
	return out
}

type storageFake struct {
	saved map[string]string
	err   error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string]string{}
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.saved[key]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishRequest(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, id)
	return nil
}

func (f *queueFake) SubscribeRequests(context.Context, func(context.Context, string) error) error {
	return nil
}

// goPool runs every task on its own goroutine.
type goPool struct{}

func (goPool) Submit(task func()) error {
	go task()
	return nil
}

func (goPool) Release() {}

func goPoolFactory(int) (ports.WorkerPool, error) { return goPool{}, nil }

func indexedDocument(id, filename string, texts ...string) *domain.Document {
	doc := &domain.Document{ID: id, Filename: filename, Indexed: true}
	for i, text := range texts {
		doc.Chunks = append(doc.Chunks, domain.Chunk{
			ID:         id + "-c" + string(rune('0'+i)),
			DocumentID: id,
			Index:      i,
			Text:       text,
			Metadata:   domain.ChunkMetadata{DocumentID: id, ChunkIndex: i, Filename: filename},
		})
	}
	return doc
}
