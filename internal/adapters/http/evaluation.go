package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

type groundTruthRequest struct {
	QuestionID string `json:"question_id"`
	AnswerText string `json:"answer_text"`
	Source     string `json:"source"`
}

type searchRequest struct {
	Query       string   `json:"query"`
	K           int      `json:"k"`
	DocumentIDs []string `json:"document_ids"`
}

func (rt *Router) addGroundTruth(w http.ResponseWriter, r *http.Request) {
	var req groundTruthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	gt, err := rt.svc.Evaluation.AddGroundTruth(r.Context(), req.QuestionID, req.AnswerText, req.Source)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, gt)
}

func (rt *Router) listEvaluations(w http.ResponseWriter, r *http.Request) {
	results, err := rt.svc.Evaluation.ListResults(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) evaluationSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := rt.svc.Evaluation.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) listRequests(w http.ResponseWriter, r *http.Request) {
	query, err := bindListQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	requests, err := rt.svc.Requests.ListRequests(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var keep func(*domain.Request) bool
	if query.Status != nil {
		status := domain.RequestStatus(*query.Status)
		keep = func(req *domain.Request) bool { return req.Status == status }
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": filterList(requests, query.Limit, keep),
	})
}

func (rt *Router) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := rt.svc.Requests.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	noteRequest(r.Context(), req)
	writeJSON(w, http.StatusOK, req)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	k := req.K
	if k <= 0 {
		k = rt.topK()
	}
	outcome, err := rt.svc.Retriever.Search(r.Context(), req.Query, k, domain.SearchFilter{DocumentIDs: req.DocumentIDs})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
