package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
)

// documentIndexer is the part of IndexDocumentUseCase projects depend on.
type documentIndexer interface {
	IndexDocument(ctx context.Context, documentID string) (*domain.Document, error)
	ExtractText(ctx context.Context, documentID string) (string, error)
}

type ProjectUseCase struct {
	projects  ports.ProjectRepository
	documents ports.DocumentRepository
	indexer   documentIndexer
	parser    *QuestionnaireParser
	answerer  ports.QuestionAnswerer
}

func NewProjectUseCase(
	projects ports.ProjectRepository,
	documents ports.DocumentRepository,
	indexer documentIndexer,
	parser *QuestionnaireParser,
	answerer ports.QuestionAnswerer,
) *ProjectUseCase {
	if parser == nil {
		parser = NewQuestionnaireParser(defaultMaxQuestions)
	}
	return &ProjectUseCase{
		projects:  projects,
		documents: documents,
		indexer:   indexer,
		parser:    parser,
		answerer:  answerer,
	}
}

// CreateProject parses the questionnaire and stores a CREATED project.
// An explicit scope without document ids is treated as all documents.
func (uc *ProjectUseCase) CreateProject(ctx context.Context, input domain.CreateProjectPayload) (*domain.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create project", errors.New("name is required"))
	}

	scope := input.Scope
	if !scope.AllDocuments && len(scope.DocumentIDs) == 0 {
		scope = domain.AllDocumentsScope()
	}
	if scope.AllDocuments {
		scope.DocumentIDs = nil
	}
	for _, id := range scope.DocumentIDs {
		if _, err := uc.documents.GetDocument(ctx, id); err != nil {
			return nil, fmt.Errorf("resolve scope document %s: %w", id, err)
		}
	}

	text := input.QuestionnaireText
	if input.QuestionnaireDoc != "" {
		extracted, err := uc.indexer.ExtractText(ctx, input.QuestionnaireDoc)
		if err != nil {
			return nil, fmt.Errorf("read questionnaire: %w", err)
		}
		text = extracted
	}

	now := time.Now().UTC()
	project := &domain.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Status:      domain.ProjectCreated,
		Scope:       scope,
		Questions:   uc.parser.Parse(text),
		Answers:     []domain.Answer{},
		DocumentIDs: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.projects.SaveProject(ctx, project); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	return project, nil
}

func (uc *ProjectUseCase) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return uc.projects.GetProject(ctx, id)
}

func (uc *ProjectUseCase) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	return uc.projects.ListProjects(ctx)
}

// UpdateProject indexes every stored document in scope and attaches it.
// The project ends OUTDATED when it covers all documents and already has
// answers, READY otherwise, or FAILED when indexing fails.
func (uc *ProjectUseCase) UpdateProject(ctx context.Context, id string) (*domain.Project, error) {
	project, err := uc.projects.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := project.Transition(domain.ProjectIndexing); err != nil {
		return nil, err
	}
	if err := uc.save(ctx, project); err != nil {
		return nil, err
	}

	if err := uc.indexScope(ctx, project); err != nil {
		project.Status = domain.ProjectFailed
		if saveErr := uc.save(ctx, project); saveErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, saveErr)
		}
		return nil, err
	}

	next := domain.ProjectReady
	if project.Scope.AllDocuments && len(project.Answers) > 0 {
		next = domain.ProjectOutdated
	}
	if err := project.Transition(next); err != nil {
		return nil, err
	}
	if err := uc.save(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (uc *ProjectUseCase) indexScope(ctx context.Context, project *domain.Project) error {
	docs, err := uc.documents.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	for _, doc := range docs {
		if !project.Scope.Includes(doc.ID) {
			continue
		}
		indexed, err := uc.indexer.IndexDocument(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("index document %s: %w", doc.ID, err)
		}
		if indexed.Indexed && !project.HasDocument(doc.ID) {
			project.DocumentIDs = append(project.DocumentIDs, doc.ID)
		}
	}
	return nil
}

// GenerateSingleAnswer answers one question synchronously and stores it.
func (uc *ProjectUseCase) GenerateSingleAnswer(ctx context.Context, projectID, questionID string) (*domain.Answer, error) {
	project, err := uc.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	question, ok := project.Question(questionID)
	if !ok {
		return nil, domain.WrapError(domain.ErrQuestionNotFound, "generate answer", fmt.Errorf("question %s", questionID))
	}

	answer := uc.answerer.AnswerQuestion(ctx, project.Scope, question)
	answer.QuestionID = question.ID

	// Reload so a concurrent batch run's answers are not overwritten.
	project, err = uc.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	project.UpsertAnswer(answer)
	if err := uc.save(ctx, project); err != nil {
		return nil, err
	}
	return &answer, nil
}

// UpdateAnswer applies a review action. MANUAL_UPDATED requires manual text.
func (uc *ProjectUseCase) UpdateAnswer(
	ctx context.Context,
	projectID, answerID string,
	update domain.AnswerUpdate,
) (*domain.Answer, error) {
	status, ok := domain.ParseAnswerStatus(string(update.Status))
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update answer", fmt.Errorf("unknown status %q", update.Status))
	}
	manual := ""
	if update.ManualAnswer != nil {
		manual = strings.TrimSpace(*update.ManualAnswer)
	}
	if status == domain.AnswerManualUpdated && manual == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update answer", errors.New("manual_answer is required for MANUAL_UPDATED"))
	}

	project, err := uc.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range project.Answers {
		if project.Answers[i].ID != answerID {
			continue
		}
		project.Answers[i].Status = status
		if update.ManualAnswer != nil {
			project.Answers[i].ManualAnswer = manual
		}
		if err := uc.save(ctx, project); err != nil {
			return nil, err
		}
		out := project.Answers[i]
		return &out, nil
	}
	return nil, domain.WrapError(domain.ErrAnswerNotFound, "update answer", fmt.Errorf("answer %s", answerID))
}

func (uc *ProjectUseCase) save(ctx context.Context, project *domain.Project) error {
	project.UpdatedAt = time.Now().UTC()
	if err := uc.projects.SaveProject(ctx, project); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}
