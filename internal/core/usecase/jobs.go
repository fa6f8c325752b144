package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
)

// RequestUseCase owns the async request lifecycle: submission, dispatch by
// type and the polled status payload.
type RequestUseCase struct {
	requests  ports.RequestRepository
	queue     ports.MessageQueue
	projects  ports.ProjectService
	documents ports.DocumentService
	answers   ports.AnswerGenerator
	evaluator ports.EvaluationService
}

func NewRequestUseCase(
	requests ports.RequestRepository,
	queue ports.MessageQueue,
	projects ports.ProjectService,
	documents ports.DocumentService,
	answers ports.AnswerGenerator,
	evaluator ports.EvaluationService,
) *RequestUseCase {
	return &RequestUseCase{
		requests:  requests,
		queue:     queue,
		projects:  projects,
		documents: documents,
		answers:   answers,
		evaluator: evaluator,
	}
}

var queuedRequestTypes = map[domain.RequestType]struct{}{
	domain.RequestCreateProject:      {},
	domain.RequestIndexDocument:      {},
	domain.RequestUpdateProject:      {},
	domain.RequestGenerateAllAnswers: {},
	domain.RequestEvaluateProject:    {},
}

// Submit persists a PENDING request and enqueues its id.
func (uc *RequestUseCase) Submit(ctx context.Context, reqType domain.RequestType, payload any) (*domain.Request, error) {
	if _, ok := queuedRequestTypes[reqType]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit request", fmt.Errorf("unsupported request type %q", reqType))
	}
	req, err := uc.newRequest(reqType, domain.RequestPending, payload)
	if err != nil {
		return nil, err
	}
	if err := uc.requests.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("save request: %w", err)
	}
	if err := uc.queue.PublishRequest(ctx, req.ID); err != nil {
		uc.fail(ctx, req, err)
		return nil, fmt.Errorf("publish request: %w", err)
	}
	return req.Clone(), nil
}

// Begin records a request that is executed inline by the caller, such as a
// streamed answer run, so pollers can observe it.
func (uc *RequestUseCase) Begin(ctx context.Context, reqType domain.RequestType, payload any) (*domain.Request, error) {
	req, err := uc.newRequest(reqType, domain.RequestInProgress, payload)
	if err != nil {
		return nil, err
	}
	if err := uc.requests.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("save request: %w", err)
	}
	return req, nil
}

func (uc *RequestUseCase) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	return uc.requests.GetRequest(ctx, id)
}

func (uc *RequestUseCase) ListRequests(ctx context.Context) ([]*domain.Request, error) {
	return uc.requests.ListRequests(ctx)
}

// ProcessByID runs a queued request. Redelivered terminal requests are skipped.
func (uc *RequestUseCase) ProcessByID(ctx context.Context, requestID string) error {
	req, err := uc.requests.GetRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("fetch request by id: %w", err)
	}
	if req.Status.Terminal() {
		return nil
	}

	req.Status = domain.RequestInProgress
	if err := uc.save(ctx, req); err != nil {
		return err
	}

	result, runErr := uc.dispatch(ctx, req)
	// A cancelled run still has to leave a terminal record.
	return uc.Finish(context.WithoutCancel(ctx), req, result, runErr)
}

// ReportProgress stores the live progress payload of an in-flight request.
func (uc *RequestUseCase) ReportProgress(ctx context.Context, req *domain.Request, progress domain.Progress) error {
	p := progress
	req.Progress = &p
	return uc.save(ctx, req)
}

// Finish moves a request to COMPLETED with result, or FAILED when runErr is set.
// runErr is returned unchanged so callers can log it.
func (uc *RequestUseCase) Finish(ctx context.Context, req *domain.Request, result any, runErr error) error {
	if runErr != nil {
		uc.fail(ctx, req, runErr)
		return runErr
	}
	raw, err := json.Marshal(result)
	if err != nil {
		uc.fail(ctx, req, err)
		return fmt.Errorf("encode request result: %w", err)
	}
	req.Status = domain.RequestCompleted
	req.Result = raw
	req.Error = ""
	return uc.save(ctx, req)
}

func (uc *RequestUseCase) dispatch(ctx context.Context, req *domain.Request) (any, error) {
	switch req.Type {
	case domain.RequestCreateProject:
		var payload domain.CreateProjectPayload
		if err := decodePayload(req, &payload); err != nil {
			return nil, err
		}
		project, err := uc.projects.CreateProject(ctx, payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{"project_id": project.ID, "questions": len(project.Questions)}, nil

	case domain.RequestIndexDocument:
		var payload domain.DocumentPayload
		if err := decodePayload(req, &payload); err != nil {
			return nil, err
		}
		doc, err := uc.documents.IndexDocument(ctx, payload.DocumentID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"document_id": doc.ID, "chunks": len(doc.Chunks), "indexed": doc.Indexed}, nil

	case domain.RequestUpdateProject:
		var payload domain.ProjectPayload
		if err := decodePayload(req, &payload); err != nil {
			return nil, err
		}
		project, err := uc.projects.UpdateProject(ctx, payload.ProjectID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"project_id": project.ID,
			"status":     project.Status,
			"documents":  project.DocumentIDs,
		}, nil

	case domain.RequestGenerateAllAnswers:
		var payload domain.ProjectPayload
		if err := decodePayload(req, &payload); err != nil {
			return nil, err
		}
		answers, err := uc.answers.GenerateAll(ctx, payload.ProjectID, func(p domain.Progress) {
			// Progress is advisory; a failed write must not abort the run.
			_ = uc.ReportProgress(ctx, req, p)
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"project_id": payload.ProjectID, "answers": answers}, nil

	case domain.RequestEvaluateProject:
		var payload domain.ProjectPayload
		if err := decodePayload(req, &payload); err != nil {
			return nil, err
		}
		results, err := uc.evaluator.EvaluateProject(ctx, payload.ProjectID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"project_id": payload.ProjectID,
			"results":    results,
			"summary":    Summarize(results),
		}, nil

	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "process request", fmt.Errorf("unsupported request type %q", req.Type))
	}
}

func (uc *RequestUseCase) newRequest(reqType domain.RequestType, status domain.RequestStatus, payload any) (*domain.Request, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode request payload", err)
	}
	now := time.Now().UTC()
	return &domain.Request{
		ID:        uuid.NewString(),
		Type:      reqType,
		Status:    status,
		Payload:   raw,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (uc *RequestUseCase) fail(ctx context.Context, req *domain.Request, cause error) {
	req.Status = domain.RequestFailed
	req.Error = cause.Error()
	_ = uc.save(ctx, req)
}

func (uc *RequestUseCase) save(ctx context.Context, req *domain.Request) error {
	req.UpdatedAt = time.Now().UTC()
	if err := uc.requests.SaveRequest(ctx, req); err != nil {
		return fmt.Errorf("save request: %w", err)
	}
	return nil
}

func decodePayload(req *domain.Request, out any) error {
	if len(req.Payload) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "decode request payload", errors.New("payload is empty"))
	}
	if err := json.Unmarshal(req.Payload, out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request payload", err)
	}
	return nil
}
