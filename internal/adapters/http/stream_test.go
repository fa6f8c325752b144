package httpadapter

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

func TestStreamAnswersEmitsEventsAndTracksRequest(t *testing.T) {
	env := newTestEnv()
	answer := domain.Answer{ID: "a-1", QuestionID: "q-1", AnswerText: "Acme Corp", Status: domain.AnswerGenerated}
	progress := domain.Progress{Current: 1, Total: 1, Percent: 100}
	env.answers.events = []domain.BatchEvent{
		{Kind: domain.EventAnswer, Answer: &answer},
		{Kind: domain.EventProgress, Progress: &progress},
		{Kind: domain.EventComplete, Answers: []domain.Answer{answer}},
	}
	handler := NewRouter(testConfig(), env.services()).Handler()

	res := serve(t, handler, http.MethodGet, "/v1/projects/p-1/answers/stream", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	body := res.Body.String()
	order := []string{"event: request\n", "event: answer\n", "event: progress\n", "event: complete\n"}
	last := -1
	for _, marker := range order {
		idx := strings.Index(body, marker)
		if idx <= last {
			t.Fatalf("expected %q after previous events, body:\n%s", marker, body)
		}
		last = idx
	}
	if !strings.Contains(body, `"request_id":"r-stream"`) {
		t.Fatalf("expected tracked request id in stream, body:\n%s", body)
	}

	if env.requests.progress != 1 {
		t.Fatalf("expected one progress report, got %d", env.requests.progress)
	}
	if env.requests.finished == nil || env.requests.finished.Status != domain.RequestCompleted {
		t.Fatalf("expected completed stream request, got %+v", env.requests.finished)
	}
}

func TestStreamAnswersFailureMarksRequestFailed(t *testing.T) {
	env := newTestEnv()
	env.answers.err = errors.New("persist answers: store offline")
	handler := NewRouter(testConfig(), env.services()).Handler()

	res := serve(t, handler, http.MethodGet, "/v1/projects/p-1/answers/stream", nil)
	if !strings.Contains(res.Body.String(), "event: error\n") {
		t.Fatalf("expected error event, body:\n%s", res.Body.String())
	}
	if env.requests.finished == nil || env.requests.finished.Status != domain.RequestFailed {
		t.Fatalf("expected failed stream request, got %+v", env.requests.finished)
	}
}

func TestStreamAnswersUnknownProjectIs404(t *testing.T) {
	env := newTestEnv()
	handler := NewRouter(testConfig(), env.services()).Handler()

	res := serve(t, handler, http.MethodGet, "/v1/projects/missing/answers/stream", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if env.requests.finished != nil {
		t.Fatalf("no request should be tracked for unknown project")
	}
}
