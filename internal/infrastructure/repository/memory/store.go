// Package memory is the in-process record store used when no database is
// configured. It is created once per process and passed to every component.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

type Store struct {
	mu sync.RWMutex

	projects    map[string]*domain.Project
	documents   map[string]*domain.Document
	docOrder    []string
	requests    map[string]*domain.Request
	groundTruth map[string]*domain.GroundTruthAnswer
	evaluations map[string][]*domain.EvaluationResult
}

func NewStore() *Store {
	return &Store{
		projects:    make(map[string]*domain.Project),
		documents:   make(map[string]*domain.Document),
		requests:    make(map[string]*domain.Request),
		groundTruth: make(map[string]*domain.GroundTruthAnswer),
		evaluations: make(map[string][]*domain.EvaluationResult),
	}
}

func (s *Store) SaveProject(_ context.Context, project *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[project.ID] = project.Clone()
	return nil
}

func (s *Store) GetProject(_ context.Context, id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
	}
	return project.Clone(), nil
}

// ListProjects returns projects newest first.
func (s *Store) ListProjects(context.Context) ([]*domain.Project, error) {
	s.mu.RLock()
	out := make([]*domain.Project, 0, len(s.projects))
	for _, project := range s.projects {
		out = append(out, project.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; !ok {
		s.docOrder = append(s.docOrder, doc.ID)
	}
	s.documents[doc.ID] = doc.Clone()
	return nil
}

func (s *Store) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
	}
	return doc.Clone(), nil
}

// ListDocuments returns documents in upload order.
func (s *Store) ListDocuments(context.Context) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Document, 0, len(s.docOrder))
	for _, id := range s.docOrder {
		out = append(out, s.documents[id].Clone())
	}
	return out, nil
}

func (s *Store) SaveRequest(_ context.Context, req *domain.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string) (*domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRequestNotFound, id)
	}
	return req.Clone(), nil
}

// ListRequests returns requests newest first.
func (s *Store) ListRequests(context.Context) ([]*domain.Request, error) {
	s.mu.RLock()
	out := make([]*domain.Request, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, req.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SaveGroundTruth(_ context.Context, gt *domain.GroundTruthAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *gt
	s.groundTruth[gt.QuestionID] = &stored
	return nil
}

func (s *Store) GetGroundTruthByQuestion(_ context.Context, questionID string) (*domain.GroundTruthAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gt, ok := s.groundTruth[questionID]
	if !ok {
		return nil, fmt.Errorf("ground truth for question %s: %w", questionID, domain.ErrNotFound)
	}
	out := *gt
	return &out, nil
}

func (s *Store) SaveEvaluation(_ context.Context, result *domain.EvaluationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *result
	s.evaluations[result.ProjectID] = append(s.evaluations[result.ProjectID], &stored)
	return nil
}

func (s *Store) ListEvaluations(_ context.Context, projectID string) ([]*domain.EvaluationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.evaluations[projectID]
	out := make([]*domain.EvaluationResult, 0, len(src))
	for _, r := range src {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

func (s *Store) DeleteEvaluations(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.evaluations, projectID)
	return nil
}
