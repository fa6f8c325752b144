package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

func (s *Store) SaveProject(ctx context.Context, project *domain.Project) error {
	return s.upsert(ctx, "projects", project.ID, project, project.CreatedAt, project.UpdatedAt)
}

func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var project domain.Project
	if err := s.getBody(ctx, `SELECT body FROM projects WHERE id = $1`, id, &project, domain.ErrProjectNotFound); err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	return listBodies[domain.Project](ctx, s.db, `SELECT body FROM projects ORDER BY created_at DESC`)
}

func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	return s.upsert(ctx, "documents", doc.ID, doc, doc.CreatedAt, doc.UpdatedAt)
}

func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	if err := s.getBody(ctx, `SELECT body FROM documents WHERE id = $1`, id, &doc, domain.ErrDocumentNotFound); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns documents in upload order.
func (s *Store) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	return listBodies[domain.Document](ctx, s.db, `SELECT body FROM documents ORDER BY created_at ASC, id ASC`)
}

func (s *Store) SaveRequest(ctx context.Context, req *domain.Request) error {
	return s.upsert(ctx, "requests", req.ID, req, req.CreatedAt, req.UpdatedAt)
}

func (s *Store) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	var req domain.Request
	if err := s.getBody(ctx, `SELECT body FROM requests WHERE id = $1`, id, &req, domain.ErrRequestNotFound); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Store) ListRequests(ctx context.Context) ([]*domain.Request, error) {
	return listBodies[domain.Request](ctx, s.db, `SELECT body FROM requests ORDER BY created_at DESC`)
}

// SaveGroundTruth keeps one ground truth per question; a new one replaces the old.
func (s *Store) SaveGroundTruth(ctx context.Context, gt *domain.GroundTruthAnswer) error {
	body, err := json.Marshal(gt)
	if err != nil {
		return fmt.Errorf("marshal ground truth: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO ground_truth (id, question_id, body, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (question_id) DO UPDATE SET id = EXCLUDED.id, body = EXCLUDED.body, created_at = EXCLUDED.created_at
`, gt.ID, gt.QuestionID, body, gt.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert ground truth: %w", err)
	}
	return nil
}

func (s *Store) GetGroundTruthByQuestion(ctx context.Context, questionID string) (*domain.GroundTruthAnswer, error) {
	var gt domain.GroundTruthAnswer
	err := s.getBody(ctx, `SELECT body FROM ground_truth WHERE question_id = $1`, questionID, &gt, domain.ErrNotFound)
	if err != nil {
		return nil, err
	}
	return &gt, nil
}

func (s *Store) SaveEvaluation(ctx context.Context, result *domain.EvaluationResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO evaluations (id, project_id, body, created_at)
VALUES ($1, $2, $3, $4)
`, result.ID, result.ProjectID, body, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (s *Store) ListEvaluations(ctx context.Context, projectID string) ([]*domain.EvaluationResult, error) {
	return listBodies[domain.EvaluationResult](ctx, s.db,
		`SELECT body FROM evaluations WHERE project_id = $1 ORDER BY created_at ASC, id ASC`, projectID)
}

func (s *Store) DeleteEvaluations(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM evaluations WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("delete evaluations: %w", err)
	}
	return nil
}
