package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/resilience"
)

// PipelineMetrics observes the answer pipeline through decorators around
// its ports, so the use cases stay free of instrumentation.
type PipelineMetrics struct {
	service string

	answersTotal       *prometheus.CounterVec
	answerConfidence   prometheus.Histogram
	answerDuration     prometheus.Histogram
	retrievalTotal     *prometheus.CounterVec
	retrievedResults   prometheus.Histogram
	llmRequestsTotal   *prometheus.CounterVec
	llmTokensTotal     *prometheus.CounterVec
	llmRetriesTotal    *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		service: service,
		answersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "answers_total",
			Help:      "Answers produced by status.",
		}, []string{"service", "status"}),
		answerConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "answer_confidence",
			Help:        "Distribution of answer confidence scores.",
			Buckets:     []float64{0, 0.1, 0.3, 0.5, 0.7, 0.8, 0.9, 1},
			ConstLabels: prometheus.Labels{"service": service},
		}),
		answerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "answer_duration_seconds",
			Help:        "Time to retrieve and synthesize one answer.",
			Buckets:     []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			ConstLabels: prometheus.Labels{"service": service},
		}),
		retrievalTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "searches_total",
			Help:      "Searches by the strategy that produced the results.",
		}, []string{"service", "strategy"}),
		retrievedResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "results",
			Help:        "Distribution of results returned per search.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21},
			ConstLabels: prometheus.Labels{"service": service},
		}),
		llmRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Completion requests by provider and outcome.",
		}, []string{"service", "provider", "status"}),
		llmTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage reported by the provider, by direction.",
		}, []string{"service", "direction", "model"}),
		llmRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "retries_total",
			Help:      "Retried backend calls by operation.",
		}, []string{"service", "operation"}),
		completionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "completion_duration_seconds",
			Help:      "Completion latency including retries.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"service", "provider"}),
	}

	registerer.MustRegister(
		m.answersTotal,
		m.answerConfidence,
		m.answerDuration,
		m.retrievalTotal,
		m.retrievedResults,
		m.llmRequestsTotal,
		m.llmTokensTotal,
		m.llmRetriesTotal,
		m.completionDuration,
	)
	return m
}

// RetryObserver counts retries announced by a resilience executor.
func (m *PipelineMetrics) RetryObserver() resilience.RetryObserver {
	return func(operation string, _ int, _ error) {
		m.llmRetriesTotal.WithLabelValues(m.service, operation).Inc()
	}
}

func (m *PipelineMetrics) InstrumentCompleter(next ports.Completer) ports.Completer {
	return &instrumentedCompleter{next: next, metrics: m}
}

func (m *PipelineMetrics) InstrumentRetriever(next ports.Retriever) ports.Retriever {
	return &instrumentedRetriever{next: next, metrics: m}
}

func (m *PipelineMetrics) InstrumentAnswerer(next ports.QuestionAnswerer) ports.QuestionAnswerer {
	return &instrumentedAnswerer{next: next, metrics: m}
}

type instrumentedCompleter struct {
	next    ports.Completer
	metrics *PipelineMetrics
}

func (c *instrumentedCompleter) Capabilities() domain.CompletionCapabilities {
	return c.next.Capabilities()
}

func (c *instrumentedCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	provider := c.next.Capabilities().Provider
	if provider == "" {
		provider = "unknown"
	}
	start := time.Now()
	out, err := c.next.Complete(ctx, req)
	c.metrics.completionDuration.WithLabelValues(c.metrics.service, provider).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.llmRequestsTotal.WithLabelValues(c.metrics.service, provider, status).Inc()
	if err == nil {
		model := out.Model
		if model == "" {
			model = "unknown"
		}
		if out.PromptTokens > 0 {
			c.metrics.llmTokensTotal.WithLabelValues(c.metrics.service, "in", model).Add(float64(out.PromptTokens))
		}
		if out.CompletionTokens > 0 {
			c.metrics.llmTokensTotal.WithLabelValues(c.metrics.service, "out", model).Add(float64(out.CompletionTokens))
		}
	}
	return out, err
}

type instrumentedRetriever struct {
	next    ports.Retriever
	metrics *PipelineMetrics
}

func (r *instrumentedRetriever) Search(ctx context.Context, query string, k int, filter domain.SearchFilter) (domain.SearchOutcome, error) {
	outcome, err := r.next.Search(ctx, query, k, filter)
	if err != nil {
		r.metrics.retrievalTotal.WithLabelValues(r.metrics.service, "error").Inc()
		return outcome, err
	}
	strategy := string(outcome.Strategy)
	if strategy == "" {
		strategy = "unknown"
	}
	r.metrics.retrievalTotal.WithLabelValues(r.metrics.service, strategy).Inc()
	r.metrics.retrievedResults.Observe(float64(len(outcome.Results)))
	return outcome, nil
}

type instrumentedAnswerer struct {
	next    ports.QuestionAnswerer
	metrics *PipelineMetrics
}

func (a *instrumentedAnswerer) AnswerQuestion(ctx context.Context, scope domain.ProjectScope, question domain.Question) domain.Answer {
	start := time.Now()
	answer := a.next.AnswerQuestion(ctx, scope, question)
	a.metrics.answerDuration.Observe(time.Since(start).Seconds())
	a.metrics.answersTotal.WithLabelValues(a.metrics.service, string(answer.Status)).Inc()
	a.metrics.answerConfidence.Observe(answer.ConfidenceScore)
	return answer
}
