package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

func newRequestUseCase(store *storeFake, queue *queueFake) *RequestUseCase {
	indexer := NewIndexDocumentUseCase(store, store, &storageFake{}, &extractorFake{text: "Revenue grew."}, chunkerFake{}, &embedderFake{}, &vectorFake{})
	answerer := &answererFake{}
	projects := NewProjectUseCase(store, store, indexer, nil, answerer)
	orchestrator := NewOrchestratorUseCase(store, answerer, goPoolFactory, domain.CompletionCapabilities{}, BatchOptions{})
	evaluator := NewEvaluateUseCase(store, store, store, store, EvaluationOptions{})
	return NewRequestUseCase(store, queue, projects, indexer, orchestrator, evaluator)
}

func TestSubmitPersistsPendingAndPublishes(t *testing.T) {
	store := newStoreFake()
	queue := &queueFake{}
	uc := newRequestUseCase(store, queue)

	req, err := uc.Submit(context.Background(), domain.RequestCreateProject, domain.CreateProjectPayload{Name: "Fund"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if req.Status != domain.RequestPending {
		t.Fatalf("expected PENDING, got %s", req.Status)
	}
	if len(queue.published) != 1 || queue.published[0] != req.ID {
		t.Fatalf("expected request id published, got %v", queue.published)
	}

	if _, err := uc.Submit(context.Background(), domain.RequestStreamAnswers, nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected streamed requests to be rejected by the queue path, got %v", err)
	}
}

func TestSubmitPublishFailureMarksRequestFailed(t *testing.T) {
	store := newStoreFake()
	uc := newRequestUseCase(store, &queueFake{err: errors.New("nats down")})

	if _, err := uc.Submit(context.Background(), domain.RequestUpdateProject, domain.ProjectPayload{ProjectID: "p-1"}); err == nil {
		t.Fatalf("expected publish error")
	}
	requests, _ := store.ListRequests(context.Background())
	if len(requests) != 1 || requests[0].Status != domain.RequestFailed || requests[0].Error != "nats down" {
		t.Fatalf("expected a FAILED request, got %+v", requests)
	}
}

func TestProcessByIDCreateProjectCompletes(t *testing.T) {
	store := newStoreFake()
	uc := newRequestUseCase(store, &queueFake{})
	req, err := uc.Submit(context.Background(), domain.RequestCreateProject, domain.CreateProjectPayload{
		Name:              "Fund",
		QuestionnaireText: "1. What is the company name?",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := uc.ProcessByID(context.Background(), req.ID); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	done, err := uc.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if done.Status != domain.RequestCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", done.Status, done.Error)
	}
	var result struct {
		ProjectID string `json:"project_id"`
		Questions int    `json:"questions"`
	}
	if err := json.Unmarshal(done.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ProjectID == "" || result.Questions != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestProcessByIDGenerateAllRecordsProgress(t *testing.T) {
	store := newStoreFake()
	projectWithQuestions(t, store, 4)
	uc := newRequestUseCase(store, &queueFake{})
	req, err := uc.Submit(context.Background(), domain.RequestGenerateAllAnswers, domain.ProjectPayload{ProjectID: "p-1"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := uc.ProcessByID(context.Background(), req.ID); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	done, _ := uc.GetRequest(context.Background(), req.ID)
	if done.Status != domain.RequestCompleted {
		t.Fatalf("expected COMPLETED, got %s", done.Status)
	}
	if done.Progress == nil || done.Progress.Current != 4 || done.Progress.Total != 4 {
		t.Fatalf("expected final progress 4/4, got %+v", done.Progress)
	}
}

func TestProcessByIDFailureIsRecorded(t *testing.T) {
	store := newStoreFake()
	uc := newRequestUseCase(store, &queueFake{})
	req, err := uc.Submit(context.Background(), domain.RequestUpdateProject, domain.ProjectPayload{ProjectID: "missing"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := uc.ProcessByID(context.Background(), req.ID); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	failed, _ := uc.GetRequest(context.Background(), req.ID)
	if failed.Status != domain.RequestFailed || failed.Error == "" {
		t.Fatalf("expected FAILED with message, got %+v", failed)
	}
}

func TestProcessByIDSkipsTerminalRequests(t *testing.T) {
	store := newStoreFake()
	uc := newRequestUseCase(store, &queueFake{})
	if err := store.SaveRequest(context.Background(), &domain.Request{ID: "r-1", Type: domain.RequestUpdateProject, Status: domain.RequestCompleted}); err != nil {
		t.Fatalf("SaveRequest() error = %v", err)
	}
	if err := uc.ProcessByID(context.Background(), "r-1"); err != nil {
		t.Fatalf("expected redelivery to be ignored, got %v", err)
	}
	req, _ := uc.GetRequest(context.Background(), "r-1")
	if req.Status != domain.RequestCompleted {
		t.Fatalf("expected status untouched, got %s", req.Status)
	}
}

func TestBeginAndFinishTrackInlineRuns(t *testing.T) {
	store := newStoreFake()
	uc := newRequestUseCase(store, &queueFake{})
	ctx := context.Background()

	req, err := uc.Begin(ctx, domain.RequestStreamAnswers, domain.ProjectPayload{ProjectID: "p-1"})
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if req.Status != domain.RequestInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", req.Status)
	}
	if err := uc.ReportProgress(ctx, req, domain.Progress{Current: 1, Total: 2}); err != nil {
		t.Fatalf("ReportProgress() error = %v", err)
	}
	if err := uc.Finish(ctx, req, map[string]int{"answers": 2}, nil); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	stored, _ := uc.GetRequest(ctx, req.ID)
	if stored.Status != domain.RequestCompleted || string(stored.Result) != `{"answers":2}` {
		t.Fatalf("unexpected stored request: %+v", stored)
	}

	runErr := errors.New("stream aborted")
	if err := uc.Finish(ctx, req, nil, runErr); !errors.Is(err, runErr) {
		t.Fatalf("expected run error returned, got %v", err)
	}
	stored, _ = uc.GetRequest(ctx, req.ID)
	if stored.Status != domain.RequestFailed {
		t.Fatalf("expected FAILED, got %s", stored.Status)
	}
}

func TestProcessByIDCancelledRunEndsFailed(t *testing.T) {
	store := newStoreFake()
	project := projectWithQuestions(t, store, 2)
	uc := newRequestUseCase(store, &queueFake{})
	req, err := uc.Submit(context.Background(), domain.RequestGenerateAllAnswers, domain.ProjectPayload{ProjectID: project.ID})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := uc.ProcessByID(ctx, req.ID); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	done, err := uc.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if done.Status != domain.RequestFailed {
		t.Fatalf("expected FAILED, got %s", done.Status)
	}
	stored, _ := store.GetProject(context.Background(), project.ID)
	if stored.Status != domain.ProjectCreated || len(stored.Answers) != 0 {
		t.Fatalf("cancelled run must not touch the project, got %s with %d answers", stored.Status, len(stored.Answers))
	}
}
