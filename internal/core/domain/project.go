package domain

import (
	"fmt"
	"time"
)

type ProjectStatus string

const (
	ProjectCreated  ProjectStatus = "CREATED"
	ProjectIndexing ProjectStatus = "INDEXING"
	ProjectReady    ProjectStatus = "READY"
	ProjectOutdated ProjectStatus = "OUTDATED"
	ProjectFailed   ProjectStatus = "FAILED"
)

var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectCreated:  {ProjectIndexing, ProjectReady, ProjectFailed},
	ProjectIndexing: {ProjectReady, ProjectOutdated, ProjectFailed},
	ProjectReady:    {ProjectIndexing, ProjectOutdated, ProjectReady, ProjectFailed},
	ProjectOutdated: {ProjectIndexing, ProjectReady, ProjectFailed},
	ProjectFailed:   {ProjectIndexing, ProjectReady},
}

func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	for _, allowed := range projectTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type AnswerStatus string

const (
	AnswerGenerated     AnswerStatus = "GENERATED"
	AnswerMissingData   AnswerStatus = "MISSING_DATA"
	AnswerConfirmed     AnswerStatus = "CONFIRMED"
	AnswerRejected      AnswerStatus = "REJECTED"
	AnswerManualUpdated AnswerStatus = "MANUAL_UPDATED"
)

func ParseAnswerStatus(raw string) (AnswerStatus, bool) {
	switch s := AnswerStatus(raw); s {
	case AnswerGenerated, AnswerMissingData, AnswerConfirmed, AnswerRejected, AnswerManualUpdated:
		return s, true
	default:
		return "", false
	}
}

// ProjectScope selects the documents eligible for retrieval.
type ProjectScope struct {
	AllDocuments bool     `json:"all_documents"`
	DocumentIDs  []string `json:"document_ids,omitempty"`
}

func AllDocumentsScope() ProjectScope {
	return ProjectScope{AllDocuments: true}
}

// Filter returns the retrieval filter for the scope; nil means unrestricted.
func (s ProjectScope) Filter() []string {
	if s.AllDocuments {
		return nil
	}
	return append([]string{}, s.DocumentIDs...)
}

func (s ProjectScope) Includes(documentID string) bool {
	if s.AllDocuments {
		return true
	}
	for _, id := range s.DocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}

type Question struct {
	ID      string `json:"id"`
	Section string `json:"section"`
	Text    string `json:"text"`
	Order   int    `json:"order"`
}

type Citation struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	Text       string `json:"text"`
	Page       *int   `json:"page,omitempty"`
}

type Answer struct {
	ID              string       `json:"id"`
	QuestionID      string       `json:"question_id"`
	AnswerText      string       `json:"answer_text"`
	Citations       []Citation   `json:"citations"`
	ConfidenceScore float64      `json:"confidence_score"`
	Status          AnswerStatus `json:"status"`
	ManualAnswer    string       `json:"manual_answer,omitempty"`
}

// EffectiveText is the reviewed text when a manual override exists.
func (a Answer) EffectiveText() string {
	if a.ManualAnswer != "" {
		return a.ManualAnswer
	}
	return a.AnswerText
}

type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Status      ProjectStatus `json:"status"`
	Scope       ProjectScope  `json:"scope"`
	Questions   []Question    `json:"questions"`
	Answers     []Answer      `json:"answers"`
	DocumentIDs []string      `json:"documents"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	out := *p
	out.Scope.DocumentIDs = append([]string(nil), p.Scope.DocumentIDs...)
	out.Questions = append([]Question(nil), p.Questions...)
	out.DocumentIDs = append([]string(nil), p.DocumentIDs...)
	out.Answers = make([]Answer, len(p.Answers))
	for i, a := range p.Answers {
		a.Citations = append([]Citation(nil), a.Citations...)
		out.Answers[i] = a
	}
	return &out
}

func (p *Project) Question(id string) (Question, bool) {
	for _, q := range p.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Transition moves the project to next, rejecting moves the lifecycle does not allow.
func (p *Project) Transition(next ProjectStatus) error {
	if p.Status == next && next != ProjectReady {
		return nil
	}
	if !p.Status.CanTransitionTo(next) {
		return WrapError(ErrInvalidTransition, "project transition", fmt.Errorf("%s -> %s", p.Status, next))
	}
	p.Status = next
	return nil
}

// UpsertAnswer replaces the answer for the same question or appends it.
func (p *Project) UpsertAnswer(answer Answer) {
	for i := range p.Answers {
		if p.Answers[i].QuestionID == answer.QuestionID {
			p.Answers[i] = answer
			return
		}
	}
	p.Answers = append(p.Answers, answer)
}

func (p *Project) HasDocument(id string) bool {
	for _, existing := range p.DocumentIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// AnswerUpdate is a review action on a generated answer.
type AnswerUpdate struct {
	Status       AnswerStatus `json:"status"`
	ManualAnswer *string      `json:"manual_answer,omitempty"`
}
