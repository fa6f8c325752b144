package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

// sseWriter serializes event and heartbeat writes onto one response.
type sseWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	err     error
	sent    int
}

func (s *sseWriter) event(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("sse_encode_failed", "event", name, "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if _, s.err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); s.err == nil {
		s.sent++
		s.flusher.Flush()
	}
}

func (s *sseWriter) comment(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if _, s.err = fmt.Fprintf(s.w, ": %s\n\n", text); s.err == nil {
		s.flusher.Flush()
	}
}

// streamAnswers runs answer generation inline and pushes progress, answer,
// complete and error events. The run is tracked as a stream_answers request.
func (rt *Router) streamAnswers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming is not supported by response writer")
		return
	}

	project, err := rt.svc.Projects.GetProject(ctx, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	noteProject(ctx, project.ID)
	tracked, err := rt.svc.Tracker.Begin(ctx, domain.RequestStreamAnswers, domain.ProjectPayload{ProjectID: project.ID})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	noteRequest(ctx, tracked)

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if rt.metrics != nil {
		rt.metrics.StreamOpened()
		defer rt.metrics.StreamClosed()
	}

	out := &sseWriter{w: w, flusher: flusher}
	out.event("request", map[string]string{"request_id": tracked.ID, "project_id": project.ID})

	stopHeartbeat := make(chan struct{})
	var heartbeatDone sync.WaitGroup
	heartbeatDone.Add(1)
	go func() {
		defer heartbeatDone.Done()
		ticker := time.NewTicker(rt.heartbeat())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				out.comment("keep-alive")
			case <-stopHeartbeat:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	answers, runErr := rt.svc.Answers.Stream(ctx, project.ID, func(e domain.BatchEvent) {
		if e.Kind == domain.EventProgress && e.Progress != nil {
			if err := rt.svc.Tracker.ReportProgress(ctx, tracked, *e.Progress); err != nil {
				slog.Warn("stream_progress_save_failed", "request_id", tracked.ID, "error", err)
			}
		}
		out.event(string(e.Kind), e)
	})
	close(stopHeartbeat)
	heartbeatDone.Wait()
	out.mu.Lock()
	noteStream(ctx, out.sent, runErr)
	out.mu.Unlock()

	// The client may be gone; the request record still has to reach a terminal state.
	finishCtx := context.WithoutCancel(ctx)
	result := map[string]any{"project_id": project.ID, "answers": answers}
	if err := rt.svc.Tracker.Finish(finishCtx, tracked, result, runErr); err != nil && runErr == nil {
		slog.Error("stream_request_finish_failed", "request_id", tracked.ID, "error", err)
	}
	if runErr != nil {
		slog.Warn("stream_answers_failed", "request_id", tracked.ID, "project_id", project.ID, "error", runErr)
	}
}
