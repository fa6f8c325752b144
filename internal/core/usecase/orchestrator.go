package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
)

const defaultBatchSize = 3

type BatchOptions struct {
	BatchSize int
	// MaxConcurrency caps the pool for unlimited backends; 0 means batch size.
	MaxConcurrency int
}

// ExecutionPolicy is the worker count and minimum spacing between
// completion requests for one run.
type ExecutionPolicy struct {
	Concurrency int
	Interval    time.Duration
}

// PolicyFor forces rate-limited backends into a single worker spaced
// 60s/RPM apart; other backends get a pool sized to the batch.
func PolicyFor(caps domain.CompletionCapabilities, opts BatchOptions) ExecutionPolicy {
	if caps.RateLimited() {
		return ExecutionPolicy{
			Concurrency: 1,
			Interval:    time.Minute / time.Duration(caps.RequestsPerMinute),
		}
	}
	size := opts.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	if opts.MaxConcurrency > 0 && opts.MaxConcurrency < size {
		size = opts.MaxConcurrency
	}
	return ExecutionPolicy{Concurrency: size}
}

type OrchestratorUseCase struct {
	projects  ports.ProjectRepository
	answerer  ports.QuestionAnswerer
	newPool   ports.WorkerPoolFactory
	policy    ExecutionPolicy
	batchSize int
}

func NewOrchestratorUseCase(
	projects ports.ProjectRepository,
	answerer ports.QuestionAnswerer,
	newPool ports.WorkerPoolFactory,
	caps domain.CompletionCapabilities,
	opts BatchOptions,
) *OrchestratorUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &OrchestratorUseCase{
		projects:  projects,
		answerer:  answerer,
		newPool:   newPool,
		policy:    PolicyFor(caps, opts),
		batchSize: opts.BatchSize,
	}
}

func (uc *OrchestratorUseCase) Policy() ExecutionPolicy {
	return uc.policy
}

// GenerateAll answers every question and reports progress once per batch.
func (uc *OrchestratorUseCase) GenerateAll(
	ctx context.Context,
	projectID string,
	onProgress func(domain.Progress),
) ([]domain.Answer, error) {
	project, err := uc.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	answers, err := uc.run(ctx, project, runHooks{
		batchDone: func(p domain.Progress) {
			if onProgress != nil {
				onProgress(p)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	if err := uc.persist(ctx, projectID, answers); err != nil {
		return nil, err
	}
	return answers, nil
}

// Stream emits an answer event and a progress event as each answer
// completes, then a single complete event. All events are emitted from
// the calling goroutine.
func (uc *OrchestratorUseCase) Stream(
	ctx context.Context,
	projectID string,
	emit func(domain.BatchEvent),
) ([]domain.Answer, error) {
	project, err := uc.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	answers, err := uc.run(ctx, project, runHooks{
		answerDone: func(answer domain.Answer, p domain.Progress) {
			a := answer
			emit(domain.BatchEvent{Kind: domain.EventAnswer, Answer: &a})
			emit(domain.BatchEvent{Kind: domain.EventProgress, Progress: &p})
		},
	})
	if err == nil {
		err = uc.persist(ctx, projectID, answers)
	}
	if err != nil {
		emit(domain.BatchEvent{Kind: domain.EventError, Error: err.Error()})
		return nil, err
	}

	emit(domain.BatchEvent{Kind: domain.EventComplete, Answers: answers})
	return answers, nil
}

type runHooks struct {
	answerDone func(domain.Answer, domain.Progress)
	batchDone  func(domain.Progress)
}

// run processes batches strictly in order. Within a batch answers may finish
// in any order and are attributed by question id.
func (uc *OrchestratorUseCase) run(ctx context.Context, project *domain.Project, hooks runHooks) ([]domain.Answer, error) {
	questions := project.Questions
	total := len(questions)
	if total == 0 {
		return []domain.Answer{}, nil
	}

	pool, err := uc.newPool(uc.policy.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var limiter *rate.Limiter
	if uc.policy.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(uc.policy.Interval), 1)
	}

	byQuestion := make(map[string]domain.Answer, total)
	startedAt := time.Now()
	done := 0

	for start := 0; start < total; start += uc.batchSize {
		if err := interrupted(ctx, done, total); err != nil {
			return nil, err
		}
		batch := questions[start:min(start+uc.batchSize, total)]
		results := make(chan domain.Answer, len(batch))

		for _, question := range batch {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					results <- failedAnswer(question.ID, err)
					continue
				}
			}
			if err := pool.Submit(func() {
				results <- uc.answerSafely(ctx, project.Scope, question)
			}); err != nil {
				results <- failedAnswer(question.ID, fmt.Errorf("submit to worker pool: %w", err))
			}
		}

		for range batch {
			answer := <-results
			byQuestion[answer.QuestionID] = answer
			done++
			if hooks.answerDone != nil {
				hooks.answerDone(answer, progressOf(done, total, startedAt, batch[0].Text))
			}
		}
		// Answers finished after cancellation carry the cancellation error,
		// so the whole run is discarded rather than merged.
		if err := interrupted(ctx, done, total); err != nil {
			return nil, err
		}
		if hooks.batchDone != nil {
			label := batch[0].Text
			if next := start + uc.batchSize; next < total {
				label = questions[next].Text
			}
			hooks.batchDone(progressOf(done, total, startedAt, label))
		}
	}

	answers := make([]domain.Answer, 0, total)
	for _, question := range questions {
		if answer, ok := byQuestion[question.ID]; ok {
			answers = append(answers, answer)
		}
	}
	return answers, nil
}

func interrupted(ctx context.Context, done, total int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("answer run interrupted after %d/%d questions: %w", done, total, err)
	}
	return nil
}

func (uc *OrchestratorUseCase) answerSafely(ctx context.Context, scope domain.ProjectScope, question domain.Question) (answer domain.Answer) {
	defer func() {
		if r := recover(); r != nil {
			answer = failedAnswer(question.ID, fmt.Errorf("panic: %v", r))
		}
	}()
	answer = uc.answerer.AnswerQuestion(ctx, scope, question)
	answer.QuestionID = question.ID
	return answer
}

// persist merges the run's answers into the stored project once and marks it READY.
func (uc *OrchestratorUseCase) persist(ctx context.Context, projectID string, answers []domain.Answer) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("persist answers: %w", err)
	}
	project, err := uc.projects.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("reload project: %w", err)
	}
	project.Answers = append([]domain.Answer(nil), answers...)
	if err := project.Transition(domain.ProjectReady); err != nil {
		return err
	}
	project.UpdatedAt = time.Now().UTC()
	if err := uc.projects.SaveProject(ctx, project); err != nil {
		return fmt.Errorf("save project answers: %w", err)
	}
	return nil
}

func progressOf(done, total int, startedAt time.Time, label string) domain.Progress {
	percent := 0.0
	remaining := 0
	if total > 0 {
		percent = math.Round(float64(done)/float64(total)*1000) / 10
	}
	if done > 0 && done < total {
		perItem := time.Since(startedAt).Seconds() / float64(done)
		remaining = int(math.Ceil(perItem * float64(total-done)))
	}
	return domain.Progress{
		Current:                   done,
		Total:                     total,
		Percent:                   percent,
		EstimatedSecondsRemaining: remaining,
		CurrentQuestion:           label,
	}
}
