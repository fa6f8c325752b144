package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

type documentsFake struct {
	uploaded []string
	indexed  []string
}

func (f *documentsFake) Upload(_ context.Context, filename, _ string, body io.Reader) (*domain.Document, error) {
	raw, _ := io.ReadAll(body)
	f.uploaded = append(f.uploaded, filename)
	return &domain.Document{ID: "doc-" + filename, Filename: filename, Content: string(raw)}, nil
}

func (f *documentsFake) IndexDocument(_ context.Context, id string) (*domain.Document, error) {
	f.indexed = append(f.indexed, id)
	return &domain.Document{ID: id, Indexed: true, Chunks: []domain.Chunk{{ID: id + "-0"}}}, nil
}

func (f *documentsFake) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	return &domain.Document{ID: id}, nil
}

func (f *documentsFake) ListDocuments(context.Context) ([]*domain.Document, error) {
	return nil, nil
}

type projectsFake struct {
	project *domain.Project
	created *domain.CreateProjectPayload
}

func (f *projectsFake) CreateProject(_ context.Context, input domain.CreateProjectPayload) (*domain.Project, error) {
	f.created = &input
	return f.project, nil
}

func (f *projectsFake) GetProject(_ context.Context, id string) (*domain.Project, error) {
	if f.project == nil || f.project.ID != id {
		return nil, domain.WrapError(domain.ErrProjectNotFound, "get project", domain.ErrProjectNotFound)
	}
	return f.project, nil
}

func (f *projectsFake) ListProjects(context.Context) ([]*domain.Project, error) { return nil, nil }

func (f *projectsFake) UpdateProject(context.Context, string) (*domain.Project, error) {
	return f.project, nil
}

func (f *projectsFake) GenerateSingleAnswer(context.Context, string, string) (*domain.Answer, error) {
	return nil, nil
}

func (f *projectsFake) UpdateAnswer(context.Context, string, string, domain.AnswerUpdate) (*domain.Answer, error) {
	return nil, nil
}

type answersFake struct {
	answers []domain.Answer
	calls   int
}

func (f *answersFake) GenerateAll(_ context.Context, _ string, onProgress func(domain.Progress)) ([]domain.Answer, error) {
	f.calls++
	if onProgress != nil {
		onProgress(domain.Progress{Current: len(f.answers), Total: len(f.answers), Percent: 100})
	}
	return f.answers, nil
}

func (f *answersFake) Stream(ctx context.Context, projectID string, _ func(domain.BatchEvent)) ([]domain.Answer, error) {
	return f.GenerateAll(ctx, projectID, nil)
}

type evaluationFake struct {
	groundTruth map[string]string
}

func (f *evaluationFake) AddGroundTruth(_ context.Context, questionID, answerText, _ string) (*domain.GroundTruthAnswer, error) {
	f.groundTruth[questionID] = answerText
	return &domain.GroundTruthAnswer{QuestionID: questionID, AnswerText: answerText}, nil
}

func (f *evaluationFake) EvaluateProject(_ context.Context, projectID string) ([]*domain.EvaluationResult, error) {
	return []*domain.EvaluationResult{{ProjectID: projectID, QuestionID: "q-1", Graded: true, OverallScore: 0.5}}, nil
}

func (f *evaluationFake) ListResults(context.Context, string) ([]*domain.EvaluationResult, error) {
	return nil, nil
}

func (f *evaluationFake) Summary(context.Context, string) (domain.EvaluationSummary, error) {
	return domain.EvaluationSummary{TotalQuestions: 2, EvaluatedQuestions: 1, AverageOverallScore: 0.5}, nil
}

type retrieverFake struct {
	query  string
	k      int
	filter domain.SearchFilter
}

func (f *retrieverFake) Search(_ context.Context, query string, k int, filter domain.SearchFilter) (domain.SearchOutcome, error) {
	f.query, f.k, f.filter = query, k, filter
	return domain.SearchOutcome{
		Strategy: domain.StrategySemantic,
		Results:  []domain.SearchResult{{ChunkID: "c-1", Text: "The fund is audited annually.", Score: 0.8}},
	}, nil
}

type testEnv struct {
	docs      *documentsFake
	projects  *projectsFake
	answers   *answersFake
	eval      *evaluationFake
	retriever *retrieverFake
	opened    int
	released  int
}

func newTestEnv() *testEnv {
	project := &domain.Project{
		ID:   "p-1",
		Name: "Fund I",
		Questions: []domain.Question{
			{ID: "q-1", Text: "Who audits the fund?", Order: 1, Section: "Financial"},
			{ID: "q-2", Text: "Does the fund use leverage?", Order: 2, Section: "General"},
		},
	}
	return &testEnv{
		docs:     &documentsFake{},
		projects: &projectsFake{project: project},
		answers: &answersFake{answers: []domain.Answer{
			{ID: "a-1", QuestionID: "q-1", AnswerText: "Smith LLP.", ConfidenceScore: 0.9, Status: domain.AnswerGenerated},
			{ID: "a-2", QuestionID: "q-2", AnswerText: "Not found.", Status: domain.AnswerMissingData},
		}},
		eval:      &evaluationFake{groundTruth: map[string]string{}},
		retriever: &retrieverFake{},
	}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(func(context.Context) (Services, func(), error) {
		e.opened++
		return Services{
			Documents:  e.docs,
			Projects:   e.projects,
			Answers:    e.answers,
			Evaluation: e.eval,
			Retriever:  e.retriever,
		}, func() { e.released++ }, nil
	})
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestSearchIngestsDocumentsAndScopesFilter(t *testing.T) {
	env := newTestEnv()
	doc := writeFile(t, "fund.md", "# Fund\nAudited annually.")

	out, err := env.run(t, "search", "--json", "-k", "2", "--doc", doc, "who audits")
	if err != nil {
		t.Fatalf("search error = %v", err)
	}
	if env.retriever.query != "who audits" || env.retriever.k != 2 {
		t.Fatalf("unexpected search call: %+v", env.retriever)
	}
	if len(env.retriever.filter.DocumentIDs) != 1 || env.retriever.filter.DocumentIDs[0] != "doc-fund.md" {
		t.Fatalf("expected filter on ingested document, got %+v", env.retriever.filter)
	}
	var outcome domain.SearchOutcome
	if err := json.Unmarshal([]byte(out), &outcome); err != nil {
		t.Fatalf("decode output: %v (%s)", err, out)
	}
	if len(outcome.Results) != 1 || outcome.Results[0].ChunkID != "c-1" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if env.opened != 1 || env.released != 1 {
		t.Fatalf("expected services opened and released once, got %d/%d", env.opened, env.released)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	env := newTestEnv()
	if _, err := env.run(t, "search"); err == nil {
		t.Fatalf("expected argument error")
	}
	if _, err := env.run(t, "search", "   "); err == nil {
		t.Fatalf("expected empty query error")
	}
	if env.opened != 0 {
		t.Fatalf("services must not be opened for invalid input")
	}
}

func TestAnswerExistingProjectPrintsAnswers(t *testing.T) {
	env := newTestEnv()
	out, err := env.run(t, "answer", "--project", "p-1")
	if err != nil {
		t.Fatalf("answer error = %v", err)
	}
	for _, want := range []string{"1. Who audits the fund?", "GENERATED", "Smith LLP.", "2. Does the fund use leverage?", "MISSING_DATA"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAnswerUnknownProject(t *testing.T) {
	env := newTestEnv()
	_, err := env.run(t, "answer", "--project", "nope")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateIngestsScopeAndQuestionnaire(t *testing.T) {
	env := newTestEnv()
	doc := writeFile(t, "policy.txt", "Leverage is not used.")
	questionnaire := writeFile(t, "ddq.txt", "1.1 Who audits the fund?")

	out, err := env.run(t, "create", "--name", "Fund I", "-q", questionnaire, "-d", doc, "--doc-id", "doc-old")
	if err != nil {
		t.Fatalf("create error = %v", err)
	}
	created := env.projects.created
	if created == nil || created.Name != "Fund I" || created.QuestionnaireDoc != "doc-ddq.txt" {
		t.Fatalf("unexpected create payload: %+v", created)
	}
	ids := created.Scope.DocumentIDs
	if created.Scope.AllDocuments || len(ids) != 2 || ids[0] != "doc-policy.txt" || ids[1] != "doc-old" {
		t.Fatalf("unexpected scope: %+v", created.Scope)
	}
	if len(env.docs.indexed) != 1 || env.docs.indexed[0] != "doc-policy.txt" {
		t.Fatalf("questionnaire must be uploaded without indexing, indexed %v", env.docs.indexed)
	}
	if !strings.Contains(out, "2 questions") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestCreateWithoutDocumentsUsesAllDocuments(t *testing.T) {
	env := newTestEnv()
	questionnaire := writeFile(t, "ddq.txt", "1.1 Who audits the fund?")
	if _, err := env.run(t, "create", "-q", questionnaire); err != nil {
		t.Fatalf("create error = %v", err)
	}
	if !env.projects.created.Scope.AllDocuments {
		t.Fatalf("expected all-documents scope, got %+v", env.projects.created.Scope)
	}
}

func TestCreateRequiresQuestionnaire(t *testing.T) {
	env := newTestEnv()
	if _, err := env.run(t, "create"); err == nil {
		t.Fatalf("expected missing questionnaire error")
	}
}

func TestEvaluateRecordsGroundTruthByOrderAndText(t *testing.T) {
	env := newTestEnv()
	gt := writeFile(t, "gt.yaml", `
- order: 1
  answer: Smith & Partners LLP
- question: "  does the FUND use leverage? "
  answer: No leverage is used.
- question: Unknown question?
  answer: ignored
`)
	out, err := env.run(t, "evaluate", "--project", "p-1", "--ground-truth", gt)
	if err != nil {
		t.Fatalf("evaluate error = %v", err)
	}
	if env.eval.groundTruth["q-1"] != "Smith & Partners LLP" || env.eval.groundTruth["q-2"] != "No leverage is used." {
		t.Fatalf("unexpected ground truth: %+v", env.eval.groundTruth)
	}
	if len(env.eval.groundTruth) != 2 {
		t.Fatalf("unmatched entries must be skipped, got %+v", env.eval.groundTruth)
	}
	if env.answers.calls != 1 {
		t.Fatalf("expected answers generated for an unanswered project, got %d runs", env.answers.calls)
	}
	if !strings.Contains(out, "evaluated 1/2 questions") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestIngestPrintsDocuments(t *testing.T) {
	env := newTestEnv()
	a := writeFile(t, "a.md", "alpha")
	b := writeFile(t, "b.md", "beta")
	out, err := env.run(t, "ingest", a, b)
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	if len(env.docs.uploaded) != 2 || !strings.Contains(out, "doc-a.md") || !strings.Contains(out, "doc-b.md") {
		t.Fatalf("unexpected ingest: uploaded %v, output %s", env.docs.uploaded, out)
	}
}

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCommand(nil)
	want := map[string]bool{"ingest": false, "create": false, "answer": false, "evaluate": false, "search": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("command %s not registered", name)
		}
	}
}
