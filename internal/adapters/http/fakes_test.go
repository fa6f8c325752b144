package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/kirillkom/ddq-assistant/internal/config"
	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

type documentsFake struct {
	docs      map[string]*domain.Document
	uploadErr error
}

func (f *documentsFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("empty file"))
	}
	now := time.Now().UTC()
	doc := &domain.Document{ID: "doc-1", Filename: filename, MimeType: mimeType, CreatedAt: now, UpdatedAt: now}
	if f.docs == nil {
		f.docs = map[string]*domain.Document{}
	}
	f.docs[doc.ID] = doc
	return doc, nil
}

func (f *documentsFake) IndexDocument(ctx context.Context, id string) (*domain.Document, error) {
	return f.GetDocument(ctx, id)
}

func (f *documentsFake) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id="+id))
	}
	return doc, nil
}

func (f *documentsFake) ListDocuments(context.Context) ([]*domain.Document, error) {
	out := make([]*domain.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, doc)
	}
	return out, nil
}

type projectsFake struct {
	projects  []*domain.Project
	updateErr error
	created   []domain.CreateProjectPayload
}

func (f *projectsFake) CreateProject(_ context.Context, input domain.CreateProjectPayload) (*domain.Project, error) {
	f.created = append(f.created, input)
	p := &domain.Project{
		ID:        "p-new",
		Name:      input.Name,
		Status:    domain.ProjectCreated,
		Scope:     domain.AllDocumentsScope(),
		Questions: []domain.Question{{ID: "q-1", Text: "What is the company name?", Order: 1}},
	}
	f.projects = append(f.projects, p)
	return p, nil
}

func (f *projectsFake) GetProject(_ context.Context, id string) (*domain.Project, error) {
	for _, p := range f.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.WrapError(domain.ErrProjectNotFound, "get project", errors.New("id="+id))
}

func (f *projectsFake) ListProjects(context.Context) ([]*domain.Project, error) {
	return f.projects, nil
}

func (f *projectsFake) UpdateProject(ctx context.Context, id string) (*domain.Project, error) {
	return f.GetProject(ctx, id)
}

func (f *projectsFake) GenerateSingleAnswer(ctx context.Context, projectID, questionID string) (*domain.Answer, error) {
	p, err := f.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, ok := p.Question(questionID); !ok {
		return nil, domain.WrapError(domain.ErrQuestionNotFound, "generate answer", errors.New("id="+questionID))
	}
	return &domain.Answer{ID: "a-1", QuestionID: questionID, AnswerText: "Acme Corp", ConfidenceScore: 0.9, Status: domain.AnswerGenerated}, nil
}

func (f *projectsFake) UpdateAnswer(_ context.Context, _, answerID string, update domain.AnswerUpdate) (*domain.Answer, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	answer := &domain.Answer{ID: answerID, QuestionID: "q-1", Status: update.Status}
	if update.ManualAnswer != nil {
		answer.ManualAnswer = *update.ManualAnswer
	}
	return answer, nil
}

type answersFake struct {
	events []domain.BatchEvent
	err    error
}

func (f *answersFake) GenerateAll(context.Context, string, func(domain.Progress)) ([]domain.Answer, error) {
	return nil, errors.New("not used")
}

func (f *answersFake) Stream(_ context.Context, _ string, emit func(domain.BatchEvent)) ([]domain.Answer, error) {
	var answers []domain.Answer
	for _, e := range f.events {
		if e.Answer != nil {
			answers = append(answers, *e.Answer)
		}
		emit(e)
	}
	if f.err != nil {
		emit(domain.BatchEvent{Kind: domain.EventError, Error: f.err.Error()})
		return nil, f.err
	}
	return answers, nil
}

type requestsFake struct {
	mu        sync.Mutex
	submitted []*domain.Request
	progress  int
	finished  *domain.Request
}

func (f *requestsFake) Submit(_ context.Context, reqType domain.RequestType, payload any) (*domain.Request, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	req := &domain.Request{ID: "r-" + string(reqType), Type: reqType, Status: domain.RequestPending, Payload: raw}
	f.submitted = append(f.submitted, req)
	return req, nil
}

func (f *requestsFake) GetRequest(_ context.Context, id string) (*domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.submitted {
		if req.ID == id {
			return req, nil
		}
	}
	return nil, domain.WrapError(domain.ErrRequestNotFound, "get request", errors.New("id="+id))
}

func (f *requestsFake) ListRequests(context.Context) ([]*domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.Request(nil), f.submitted...), nil
}

func (f *requestsFake) Begin(_ context.Context, reqType domain.RequestType, _ any) (*domain.Request, error) {
	return &domain.Request{ID: "r-stream", Type: reqType, Status: domain.RequestInProgress}, nil
}

func (f *requestsFake) ReportProgress(_ context.Context, req *domain.Request, p domain.Progress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress++
	req.Progress = &p
	return nil
}

func (f *requestsFake) Finish(_ context.Context, req *domain.Request, _ any, runErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req.Status = domain.RequestCompleted
	if runErr != nil {
		req.Status = domain.RequestFailed
		req.Error = runErr.Error()
	}
	f.finished = req
	return runErr
}

type evaluationFake struct {
	results []*domain.EvaluationResult
}

func (f *evaluationFake) AddGroundTruth(_ context.Context, questionID, answerText, source string) (*domain.GroundTruthAnswer, error) {
	if source == "" {
		source = domain.GroundTruthSourceHuman
	}
	return &domain.GroundTruthAnswer{ID: "gt-1", QuestionID: questionID, AnswerText: answerText, Source: source}, nil
}

func (f *evaluationFake) EvaluateProject(context.Context, string) ([]*domain.EvaluationResult, error) {
	return f.results, nil
}

func (f *evaluationFake) ListResults(context.Context, string) ([]*domain.EvaluationResult, error) {
	return f.results, nil
}

func (f *evaluationFake) Summary(context.Context, string) (domain.EvaluationSummary, error) {
	return domain.EvaluationSummary{TotalQuestions: len(f.results), EvaluatedQuestions: len(f.results), AverageOverallScore: 0.75}, nil
}

type retrieverFake struct {
	gotK      int
	gotFilter domain.SearchFilter
}

func (f *retrieverFake) Search(_ context.Context, query string, k int, filter domain.SearchFilter) (domain.SearchOutcome, error) {
	f.gotK = k
	f.gotFilter = filter
	return domain.SearchOutcome{
		Strategy: domain.StrategyKeyword,
		Results: []domain.SearchResult{{
			ChunkID:  "c-1",
			Text:     "Acme Corp reported revenue for " + query,
			Metadata: domain.ChunkMetadata{DocumentID: "doc-1", Filename: "report.pdf"},
			Score:    4,
		}},
	}, nil
}

type testEnv struct {
	documents  *documentsFake
	projects   *projectsFake
	answers    *answersFake
	requests   *requestsFake
	evaluation *evaluationFake
	retriever  *retrieverFake
}

func newTestEnv() *testEnv {
	return &testEnv{
		documents: &documentsFake{docs: map[string]*domain.Document{
			"doc-1": {ID: "doc-1", Filename: "report.pdf", Indexed: true},
		}},
		projects: &projectsFake{projects: []*domain.Project{
			{
				ID:     "p-1",
				Name:   "Fund I",
				Status: domain.ProjectReady,
				Scope:  domain.AllDocumentsScope(),
				Questions: []domain.Question{
					{ID: "q-1", Text: "What is the company name?", Order: 1},
					{ID: "q-2", Text: "Are there lawsuits?", Order: 2},
				},
				Answers: []domain.Answer{
					{ID: "a-1", QuestionID: "q-1", Status: domain.AnswerGenerated},
					{ID: "a-2", QuestionID: "q-2", Status: domain.AnswerMissingData},
				},
			},
			{ID: "p-2", Name: "Fund II", Status: domain.ProjectCreated},
		}},
		answers:    &answersFake{},
		requests:   &requestsFake{},
		evaluation: &evaluationFake{},
		retriever:  &retrieverFake{},
	}
}

func (e *testEnv) services() Services {
	return Services{
		Documents:  e.documents,
		Projects:   e.projects,
		Answers:    e.answers,
		Requests:   e.requests,
		Tracker:    e.requests,
		Evaluation: e.evaluation,
		Retriever:  e.retriever,
	}
}

func testConfig() config.Config {
	return config.Config{
		RetrievalTopK:        3,
		APIRequestValidation: true,
	}
}
