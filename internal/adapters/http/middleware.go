package httpadapter

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

// correlationHeader carries the per-call id. It is distinct from the id of a
// queued domain request, which is logged as request_id.
const correlationHeader = "X-Request-Id"

type correlationIDKey struct{}

func correlationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(correlationHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(correlationHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationIDKey{}, id)))
	})
}

// callNote gathers what a handler resolved while serving one call so the
// access line names the project, document or queued request it touched.
type callNote struct {
	mu          sync.Mutex
	projectID   string
	documentID  string
	requestID   string
	requestType domain.RequestType
	streamed    bool
	events      int
	runErr      error
}

type callNoteKey struct{}

func noteFrom(ctx context.Context) *callNote {
	note, _ := ctx.Value(callNoteKey{}).(*callNote)
	return note
}

func noteProject(ctx context.Context, projectID string) {
	if note := noteFrom(ctx); note != nil {
		note.mu.Lock()
		note.projectID = projectID
		note.mu.Unlock()
	}
}

func noteDocument(ctx context.Context, documentID string) {
	if note := noteFrom(ctx); note != nil {
		note.mu.Lock()
		note.documentID = documentID
		note.mu.Unlock()
	}
}

func noteRequest(ctx context.Context, req *domain.Request) {
	if req == nil {
		return
	}
	if note := noteFrom(ctx); note != nil {
		note.mu.Lock()
		note.requestID = req.ID
		note.requestType = req.Type
		note.mu.Unlock()
	}
}

func noteStream(ctx context.Context, events int, runErr error) {
	if note := noteFrom(ctx); note != nil {
		note.mu.Lock()
		note.streamed = true
		note.events = events
		note.runErr = runErr
		note.mu.Unlock()
	}
}

func (n *callNote) attrs() []any {
	n.mu.Lock()
	defer n.mu.Unlock()
	var attrs []any
	if n.projectID != "" {
		attrs = append(attrs, "project_id", n.projectID)
	}
	if n.documentID != "" {
		attrs = append(attrs, "document_id", n.documentID)
	}
	if n.requestID != "" {
		attrs = append(attrs, "request_id", n.requestID, "request_type", string(n.requestType))
	}
	if n.streamed {
		attrs = append(attrs, "events", n.events)
		if n.runErr != nil {
			attrs = append(attrs, "run_error", n.runErr.Error())
		}
	}
	return attrs
}

// accessLogMiddleware writes http_request per call, or http_stream for an
// answer stream once it closes.
func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		note := &callNote{}
		r = r.WithContext(context.WithValue(r.Context(), callNoteKey{}, note))
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		attrs := []any{
			"correlation_id", correlationIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.statusCode,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes", recorder.bytesWritten,
		}
		attrs = append(attrs, note.attrs()...)

		event, level := "http_request", slog.LevelInfo
		switch {
		case recorder.statusCode >= 500:
			level = slog.LevelError
		case recorder.statusCode >= 400:
			level = slog.LevelWarn
		}
		if note.streamed {
			event = "http_stream"
			attrs = append(attrs, "client_gone", r.Context().Err() != nil)
			if note.runErr != nil {
				level = slog.LevelWarn
			}
		}
		slog.Log(r.Context(), level, event, attrs...)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

// Unwrap lets http.ResponseController reach the write deadline of the
// underlying connection for answer streams.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
