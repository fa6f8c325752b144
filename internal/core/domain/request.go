package domain

import (
	"encoding/json"
	"time"
)

type RequestStatus string

const (
	RequestPending    RequestStatus = "PENDING"
	RequestInProgress RequestStatus = "IN_PROGRESS"
	RequestCompleted  RequestStatus = "COMPLETED"
	RequestFailed     RequestStatus = "FAILED"
)

func (s RequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestFailed
}

type RequestType string

const (
	RequestCreateProject      RequestType = "create_project"
	RequestIndexDocument      RequestType = "index_document"
	RequestUpdateProject      RequestType = "update_project"
	RequestGenerateAllAnswers RequestType = "generate_all_answers"
	RequestStreamAnswers      RequestType = "stream_answers"
	RequestEvaluateProject    RequestType = "evaluate_project"
)

// Progress is the structured payload of an IN_PROGRESS request.
type Progress struct {
	Current                   int     `json:"current"`
	Total                     int     `json:"total"`
	Percent                   float64 `json:"percent"`
	EstimatedSecondsRemaining int     `json:"estimated_seconds_remaining"`
	CurrentQuestion           string  `json:"current_question,omitempty"`
}

type Request struct {
	ID        string          `json:"id"`
	Type      RequestType     `json:"type"`
	Status    RequestStatus   `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Progress  *Progress       `json:"progress,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r
	out.Payload = append(json.RawMessage(nil), r.Payload...)
	out.Result = append(json.RawMessage(nil), r.Result...)
	if r.Progress != nil {
		p := *r.Progress
		out.Progress = &p
	}
	return &out
}

type BatchEventKind string

const (
	EventProgress BatchEventKind = "progress"
	EventAnswer   BatchEventKind = "answer"
	EventComplete BatchEventKind = "complete"
	EventError    BatchEventKind = "error"
)

// BatchEvent is one item of the streaming answer surface.
type BatchEvent struct {
	Kind     BatchEventKind `json:"kind"`
	Progress *Progress      `json:"progress,omitempty"`
	Answer   *Answer        `json:"answer,omitempty"`
	Answers  []Answer       `json:"answers,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type CreateProjectPayload struct {
	Name              string       `json:"name"`
	QuestionnaireText string       `json:"questionnaire_text,omitempty"`
	QuestionnaireDoc  string       `json:"questionnaire_document_id,omitempty"`
	Scope             ProjectScope `json:"scope"`
}

type ProjectPayload struct {
	ProjectID string `json:"project_id"`
}

type DocumentPayload struct {
	DocumentID string `json:"document_id"`
}
