package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

type projectStatusResponse struct {
	ProjectID       string                      `json:"project_id"`
	Name            string                      `json:"name"`
	Status          domain.ProjectStatus        `json:"status"`
	Questions       int                         `json:"questions"`
	Answers         int                         `json:"answers"`
	AnswersByStatus map[domain.AnswerStatus]int `json:"answers_by_status"`
	Documents       int                         `json:"documents"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

func (rt *Router) createProject(w http.ResponseWriter, r *http.Request) {
	async, err := bindAsync(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var payload domain.CreateProjectPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if async {
		req, err := rt.svc.Requests.Submit(r.Context(), domain.RequestCreateProject, payload)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		noteRequest(r.Context(), req)
		writeJSON(w, http.StatusAccepted, req)
		return
	}

	project, err := rt.svc.Projects.CreateProject(r.Context(), payload)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	noteProject(r.Context(), project.ID)
	writeJSON(w, http.StatusCreated, project)
}

func (rt *Router) listProjects(w http.ResponseWriter, r *http.Request) {
	query, err := bindListQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	projects, err := rt.svc.Projects.ListProjects(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var keep func(*domain.Project) bool
	if query.Status != nil {
		status := domain.ProjectStatus(*query.Status)
		keep = func(p *domain.Project) bool { return p.Status == status }
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projects": filterList(projects, query.Limit, keep),
	})
}

func (rt *Router) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := rt.svc.Projects.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (rt *Router) getProjectStatus(w http.ResponseWriter, r *http.Request) {
	project, err := rt.svc.Projects.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	byStatus := make(map[domain.AnswerStatus]int)
	for _, answer := range project.Answers {
		byStatus[answer.Status]++
	}
	writeJSON(w, http.StatusOK, projectStatusResponse{
		ProjectID:       project.ID,
		Name:            project.Name,
		Status:          project.Status,
		Questions:       len(project.Questions),
		Answers:         len(project.Answers),
		AnswersByStatus: byStatus,
		Documents:       len(project.DocumentIDs),
		UpdatedAt:       project.UpdatedAt,
	})
}

func (rt *Router) updateProject(w http.ResponseWriter, r *http.Request) {
	rt.submitForProject(w, r, domain.RequestUpdateProject)
}

func (rt *Router) generateAllAnswers(w http.ResponseWriter, r *http.Request) {
	rt.submitForProject(w, r, domain.RequestGenerateAllAnswers)
}

func (rt *Router) evaluateProject(w http.ResponseWriter, r *http.Request) {
	rt.submitForProject(w, r, domain.RequestEvaluateProject)
}

// submitForProject resolves the project before queuing so unknown ids fail
// synchronously with 404.
func (rt *Router) submitForProject(w http.ResponseWriter, r *http.Request, reqType domain.RequestType) {
	project, err := rt.svc.Projects.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	noteProject(r.Context(), project.ID)
	req, err := rt.svc.Requests.Submit(r.Context(), reqType, domain.ProjectPayload{ProjectID: project.ID})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	noteRequest(r.Context(), req)
	writeJSON(w, http.StatusAccepted, req)
}

func (rt *Router) generateSingleAnswer(w http.ResponseWriter, r *http.Request) {
	noteProject(r.Context(), r.PathValue("id"))
	answer, err := rt.svc.Projects.GenerateSingleAnswer(r.Context(), r.PathValue("id"), r.PathValue("question_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) updateAnswer(w http.ResponseWriter, r *http.Request) {
	var update domain.AnswerUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	noteProject(r.Context(), r.PathValue("id"))
	answer, err := rt.svc.Projects.UpdateAnswer(r.Context(), r.PathValue("id"), r.PathValue("answer_id"), update)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}
