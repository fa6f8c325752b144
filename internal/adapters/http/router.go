package httpadapter

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kirillkom/ddq-assistant/internal/adapters/http/openapi"
	"github.com/kirillkom/ddq-assistant/internal/config"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
	"github.com/kirillkom/ddq-assistant/internal/observability/metrics"
)

const (
	maxUploadBytes   = 64 << 20
	defaultTopK      = 3
	metricsService   = "api"
	defaultHeartbeat = 15 * time.Second
)

// Services groups the inbound ports served over HTTP.
type Services struct {
	Documents  ports.DocumentService
	Projects   ports.ProjectService
	Answers    ports.AnswerGenerator
	Requests   ports.RequestService
	Tracker    ports.RequestTracker
	Evaluation ports.EvaluationService
	Retriever  ports.Retriever
}

type Router struct {
	cfg     config.Config
	svc     Services
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, svc Services) *Router {
	return &Router{cfg: cfg, svc: svc}
}

// WithMetrics instruments every route and mounts GET /metrics.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)

	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	mux.HandleFunc("POST /v1/documents/{id}/index", rt.indexDocument)

	mux.HandleFunc("POST /v1/projects", rt.createProject)
	mux.HandleFunc("GET /v1/projects", rt.listProjects)
	mux.HandleFunc("GET /v1/projects/{id}", rt.getProject)
	mux.HandleFunc("GET /v1/projects/{id}/status", rt.getProjectStatus)
	mux.HandleFunc("POST /v1/projects/{id}/update", rt.updateProject)
	mux.HandleFunc("POST /v1/projects/{id}/answers/generate", rt.generateAllAnswers)
	mux.HandleFunc("GET /v1/projects/{id}/answers/stream", rt.streamAnswers)
	mux.HandleFunc("PATCH /v1/projects/{id}/answers/{answer_id}", rt.updateAnswer)
	mux.HandleFunc("POST /v1/projects/{id}/questions/{question_id}/answer", rt.generateSingleAnswer)
	mux.HandleFunc("POST /v1/projects/{id}/evaluate", rt.evaluateProject)
	mux.HandleFunc("GET /v1/projects/{id}/evaluations", rt.listEvaluations)
	mux.HandleFunc("GET /v1/projects/{id}/evaluations/summary", rt.evaluationSummary)

	mux.HandleFunc("POST /v1/ground-truth", rt.addGroundTruth)
	mux.HandleFunc("GET /v1/requests", rt.listRequests)
	mux.HandleFunc("GET /v1/requests/{id}", rt.getRequest)
	mux.HandleFunc("POST /v1/search", rt.search)

	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.APIRequestValidation {
		doc, err := openapi.Load()
		if err != nil {
			panic(fmt.Sprintf("embedded openapi document: %v", err))
		}
		validator, err := newRequestValidator(doc)
		if err != nil {
			panic(fmt.Sprintf("openapi router: %v", err))
		}
		handler = validator.middleware(handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(metricsService, handler)
	}
	handler = accessLogMiddleware(handler)
	return correlationMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) topK() int {
	if rt.cfg.RetrievalTopK > 0 {
		return rt.cfg.RetrievalTopK
	}
	return defaultTopK
}

func (rt *Router) heartbeat() time.Duration {
	if rt.cfg.APIStreamHeartbeat > 0 {
		return rt.cfg.APIStreamHeartbeat
	}
	return defaultHeartbeat
}
