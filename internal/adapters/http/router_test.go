package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/observability/metrics"
)

func serve(t *testing.T, handler http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthzEndpoint(t *testing.T) {
	handler := NewRouter(testConfig(), newTestEnv().services()).Handler()
	res := serve(t, handler, http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(correlationHeader) == "" {
		t.Fatalf("expected generated %s header", correlationHeader)
	}
}

func TestUploadDocumentSubmitsIndexRequest(t *testing.T) {
	env := newTestEnv()
	handler := NewRouter(testConfig(), env.services()).Handler()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "deck.txt")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("Acme Corp annual report")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	resp := decodeBody(t, res)
	doc, _ := resp["document"].(map[string]any)
	if doc["filename"] != "deck.txt" {
		t.Fatalf("unexpected document: %+v", resp)
	}
	if len(env.requests.submitted) != 1 || env.requests.submitted[0].Type != domain.RequestIndexDocument {
		t.Fatalf("expected one index_document request, got %+v", env.requests.submitted)
	}
	if !strings.Contains(string(env.requests.submitted[0].Payload), `"document_id":"doc-1"`) {
		t.Fatalf("unexpected payload: %s", env.requests.submitted[0].Payload)
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	handler := NewRouter(testConfig(), newTestEnv().services()).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentReturns404ForNotFound(t *testing.T) {
	handler := NewRouter(testConfig(), newTestEnv().services()).Handler()
	res := serve(t, handler, http.MethodGet, "/v1/documents/missing", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if resp := decodeBody(t, res); resp["error"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestCreateProjectSyncAndAsync(t *testing.T) {
	env := newTestEnv()
	handler := NewRouter(testConfig(), env.services()).Handler()
	payload := []byte(`{"name":"Fund III","questionnaire_text":"1. What is the company name?"}`)

	res := serve(t, handler, http.MethodPost, "/v1/projects", payload)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if resp := decodeBody(t, res); resp["id"] != "p-new" {
		t.Fatalf("unexpected project: %+v", resp)
	}

	res = serve(t, handler, http.MethodPost, "/v1/projects?async=true", payload)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if resp := decodeBody(t, res); resp["type"] != string(domain.RequestCreateProject) || resp["status"] != string(domain.RequestPending) {
		t.Fatalf("unexpected request: %+v", resp)
	}
	if len(env.projects.created) != 1 {
		t.Fatalf("async create must not run inline, got %d creations", len(env.projects.created))
	}
}

func TestCreateProjectRejectedBySchema(t *testing.T) {
	env := newTestEnv()
	handler := NewRouter(testConfig(), env.services()).Handler()

	res := serve(t, handler, http.MethodPost, "/v1/projects", []byte(`{"name":""}`))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(env.projects.created) != 0 {
		t.Fatalf("invalid body reached the service")
	}
}

func TestListProjectsFiltersByStatusAndLimit(t *testing.T) {
	handler := NewRouter(testConfig(), newTestEnv().services()).Handler()

	res := serve(t, handler, http.MethodGet, "/v1/projects?status=READY", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	projects, _ := decodeBody(t, res)["projects"].([]any)
	if len(projects) != 1 {
		t.Fatalf("expected one READY project, got %d", len(projects))
	}

	res = serve(t, handler, http.MethodGet, "/v1/projects?limit=1", nil)
	projects, _ = decodeBody(t, res)["projects"].([]any)
	if len(projects) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(projects))
	}

	res = serve(t, handler, http.MethodGet, "/v1/projects?limit=abc", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed limit, got %d", res.Code)
	}
}

func TestListProjectsBindsQueryWithoutValidation(t *testing.T) {
	cfg := testConfig()
	cfg.APIRequestValidation = false
	handler := NewRouter(cfg, newTestEnv().services()).Handler()

	res := serve(t, handler, http.MethodGet, "/v1/projects?limit=abc", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 from query binding, got %d", res.Code)
	}
}

func TestProjectStatusCountsAnswers(t *testing.T) {
	handler := NewRouter(testConfig(), newTestEnv().services()).Handler()
	res := serve(t, handler, http.MethodGet, "/v1/projects/p-1/status", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var status projectStatusResponse
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Questions != 2 || status.Answers != 2 || status.AnswersByStatus[domain.AnswerMissingData] != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestProjectActionsSubmitRequests(t *testing.T) {
	env := newTestEnv()
	handler := NewRouter(testConfig(), env.services()).Handler()

	cases := map[string]domain.RequestType{
		"/v1/projects/p-1/update":           domain.RequestUpdateProject,
		"/v1/projects/p-1/answers/generate": domain.RequestGenerateAllAnswers,
		"/v1/projects/p-1/evaluate":         domain.RequestEvaluateProject,
	}
	for path, want := range cases {
		res := serve(t, handler, http.MethodPost, path, nil)
		if res.Code != http.StatusAccepted {
			t.Fatalf("%s: expected 202, got %d", path, res.Code)
		}
		if resp := decodeBody(t, res); resp["type"] != string(want) {
			t.Fatalf("%s: unexpected request %+v", path, resp)
		}
	}

	res := serve(t, handler, http.MethodPost, "/v1/projects/missing/answers/generate", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown project, got %d", res.Code)
	}
	if len(env.requests.submitted) != len(cases) {
		t.Fatalf("unknown project must not be queued, got %d requests", len(env.requests.submitted))
	}
}

func TestGenerateSingleAnswer(t *testing.T) {
	handler := NewRouter(testConfig(), newTestEnv().services()).Handler()

	res := serve(t, handler, http.MethodPost, "/v1/projects/p-1/questions/q-1/answer", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if resp := decodeBody(t, res); resp["answer_text"] != "Acme Corp" {
		t.Fatalf("unexpected answer: %+v", resp)
	}

	res = serve(t, handler, http.MethodPost, "/v1/projects/p-1/questions/q-9/answer", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown question, got %d", res.Code)
	}
}

func TestUpdateAnswerStatusMapping(t *testing.T) {
	env := newTestEnv()
	handler := NewRouter(testConfig(), env.services()).Handler()

	res := serve(t, handler, http.MethodPatch, "/v1/projects/p-1/answers/a-1", []byte(`{"status":"MANUAL_UPDATED","manual_answer":"Acme Holdings"}`))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if resp := decodeBody(t, res); resp["manual_answer"] != "Acme Holdings" {
		t.Fatalf("unexpected answer: %+v", resp)
	}

	res = serve(t, handler, http.MethodPatch, "/v1/projects/p-1/answers/a-1", []byte(`{"status":"APPROVED"}`))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", res.Code)
	}

	env.projects.updateErr = domain.WrapError(domain.ErrInvalidTransition, "update answer", errors.New("locked"))
	res = serve(t, handler, http.MethodPatch, "/v1/projects/p-1/answers/a-1", []byte(`{"status":"CONFIRMED"}`))
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}

	env.projects.updateErr = domain.WrapError(domain.ErrAnswerNotFound, "update answer", errors.New("id=a-9"))
	res = serve(t, handler, http.MethodPatch, "/v1/projects/p-1/answers/a-9", []byte(`{"status":"CONFIRMED"}`))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestUnclassifiedErrorsAreHidden(t *testing.T) {
	env := newTestEnv()
	env.documents.uploadErr = errors.New("disk exploded at /var/data")
	handler := NewRouter(testConfig(), env.services()).Handler()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "a.txt")
	_, _ = part.Write([]byte("x"))
	_ = writer.Close()
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if resp := decodeBody(t, res); resp["error"] != "internal error" {
		t.Fatalf("expected generic message, got %+v", resp)
	}
}

func TestGroundTruthAndEvaluations(t *testing.T) {
	env := newTestEnv()
	env.evaluation.results = []*domain.EvaluationResult{{ID: "e-1", ProjectID: "p-1", QuestionID: "q-1", Graded: true, OverallScore: 0.75}}
	handler := NewRouter(testConfig(), env.services()).Handler()

	res := serve(t, handler, http.MethodPost, "/v1/ground-truth", []byte(`{"question_id":"q-1","answer_text":"Acme Corp"}`))
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if resp := decodeBody(t, res); resp["source"] != domain.GroundTruthSourceHuman {
		t.Fatalf("unexpected ground truth: %+v", resp)
	}

	res = serve(t, handler, http.MethodPost, "/v1/ground-truth", []byte(`{"question_id":"q-1"}`))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing answer_text, got %d", res.Code)
	}

	res = serve(t, handler, http.MethodGet, "/v1/projects/p-1/evaluations", nil)
	results, _ := decodeBody(t, res)["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}

	res = serve(t, handler, http.MethodGet, "/v1/projects/p-1/evaluations/summary", nil)
	if resp := decodeBody(t, res); resp["average_overall_score"] != 0.75 {
		t.Fatalf("unexpected summary: %+v", resp)
	}
}

func TestRequestsListAndGet(t *testing.T) {
	env := newTestEnv()
	handler := NewRouter(testConfig(), env.services()).Handler()
	serve(t, handler, http.MethodPost, "/v1/projects/p-1/evaluate", nil)

	res := serve(t, handler, http.MethodGet, "/v1/requests?status=PENDING", nil)
	requests, _ := decodeBody(t, res)["requests"].([]any)
	if len(requests) != 1 {
		t.Fatalf("expected one pending request, got %d", len(requests))
	}

	res = serve(t, handler, http.MethodGet, "/v1/requests/r-evaluate_project", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	res = serve(t, handler, http.MethodGet, "/v1/requests/unknown", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestSearchReportsStrategy(t *testing.T) {
	env := newTestEnv()
	handler := NewRouter(testConfig(), env.services()).Handler()

	res := serve(t, handler, http.MethodPost, "/v1/search", []byte(`{"query":"revenue","document_ids":["doc-1"]}`))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var outcome domain.SearchOutcome
	if err := json.NewDecoder(res.Body).Decode(&outcome); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if outcome.Strategy != domain.StrategyKeyword || len(outcome.Results) != 1 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if env.retriever.gotK != 3 || len(env.retriever.gotFilter.DocumentIDs) != 1 {
		t.Fatalf("expected default k and filter, got k=%d filter=%+v", env.retriever.gotK, env.retriever.gotFilter)
	}

	res = serve(t, handler, http.MethodPost, "/v1/search", []byte(`{"query":""}`))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", res.Code)
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	handler := NewRouter(testConfig(), newTestEnv().services()).
		WithMetrics(metrics.NewHTTPServerMetrics("api")).
		Handler()

	serve(t, handler, http.MethodGet, "/healthz", nil)
	res := serve(t, handler, http.MethodGet, "/metrics", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "ddq_http_requests_total") {
		t.Fatalf("expected http request series in scrape")
	}
}
