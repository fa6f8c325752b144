package mcpadapter

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/usecase"
)

const (
	ToolSearch          = "search_documents"
	ToolListProjects    = "list_projects"
	ToolGetProject      = "get_project"
	ToolCreateProject   = "create_project"
	ToolAnswerQuestion  = "answer_question"
	ToolGenerateAnswers = "generate_all_answers"
	ToolReviewAnswer    = "review_answer"
	ToolAddGroundTruth  = "add_ground_truth"
	ToolEvaluate        = "evaluate_project"
	ToolGetRequest      = "get_request"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(ToolSearch,
		mcp.WithDescription("Search indexed documents. Reports which strategy (semantic, keyword, none) produced the results."),
		mcp.WithString("query", mcp.Required(), mcp.MinLength(1), mcp.Description("Question or keywords")),
		mcp.WithNumber("k", mcp.Min(1), mcp.Max(50), mcp.Description("Number of results")),
		mcp.WithArray("document_ids", mcp.WithStringItems(), mcp.Description("Restrict to these documents")),
	), s.search)

	s.mcp.AddTool(mcp.NewTool(ToolListProjects,
		mcp.WithDescription("List questionnaire projects with their status."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool(ToolGetProject,
		mcp.WithDescription("Get a project with its questions and answers."),
		mcp.WithString("project_id", mcp.Required()),
	), s.getProject)

	s.mcp.AddTool(mcp.NewTool(ToolCreateProject,
		mcp.WithDescription("Create a project from questionnaire text. Without document_ids every document is in scope."),
		mcp.WithString("name", mcp.Required(), mcp.MinLength(1)),
		mcp.WithString("questionnaire_text", mcp.Description("Raw questionnaire; questions are extracted from it")),
		mcp.WithArray("document_ids", mcp.WithStringItems()),
	), s.createProject)

	s.mcp.AddTool(mcp.NewTool(ToolAnswerQuestion,
		mcp.WithDescription("Generate a cited, confidence-scored answer for one project question."),
		mcp.WithString("project_id", mcp.Required()),
		mcp.WithString("question_id", mcp.Required()),
	), s.answerQuestion)

	s.mcp.AddTool(mcp.NewTool(ToolGenerateAnswers,
		mcp.WithDescription("Queue answer generation for every question of a project. Poll get_request for progress."),
		mcp.WithString("project_id", mcp.Required()),
	), s.generateAllAnswers)

	s.mcp.AddTool(mcp.NewTool(ToolReviewAnswer,
		mcp.WithDescription("Confirm, reject or manually override a generated answer."),
		mcp.WithString("project_id", mcp.Required()),
		mcp.WithString("answer_id", mcp.Required()),
		mcp.WithString("status", mcp.Required(), mcp.Enum(
			string(domain.AnswerConfirmed),
			string(domain.AnswerRejected),
			string(domain.AnswerManualUpdated),
			string(domain.AnswerGenerated),
			string(domain.AnswerMissingData),
		)),
		mcp.WithString("manual_answer", mcp.Description("Required for MANUAL_UPDATED")),
	), s.reviewAnswer)

	s.mcp.AddTool(mcp.NewTool(ToolAddGroundTruth,
		mcp.WithDescription("Store the reference answer for a question."),
		mcp.WithString("question_id", mcp.Required()),
		mcp.WithString("answer_text", mcp.Required(), mcp.MinLength(1)),
		mcp.WithString("source", mcp.Description("Defaults to human_expert")),
	), s.addGroundTruth)

	s.mcp.AddTool(mcp.NewTool(ToolEvaluate,
		mcp.WithDescription("Score project answers against ground truth and return results with a summary."),
		mcp.WithString("project_id", mcp.Required()),
	), s.evaluate)

	s.mcp.AddTool(mcp.NewTool(ToolGetRequest,
		mcp.WithDescription("Get the status, progress and result of an async request."),
		mcp.WithString("request_id", mcp.Required()),
	), s.getRequest)
}

func (s *Server) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	k := req.GetInt("k", s.topK)
	filter := domain.SearchFilter{DocumentIDs: req.GetStringSlice("document_ids", nil)}

	outcome, err := s.svc.Retriever.Search(ctx, query, k, filter)
	if err != nil {
		return toolError("search", err), nil
	}
	return jsonResult(map[string]any{"strategy": outcome.Strategy, "results": outcome.Results})
}

func (s *Server) listProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.svc.Projects.ListProjects(ctx)
	if err != nil {
		return toolError("list projects", err), nil
	}
	type projectRow struct {
		ID        string               `json:"id"`
		Name      string               `json:"name"`
		Status    domain.ProjectStatus `json:"status"`
		Questions int                  `json:"questions"`
		Answers   int                  `json:"answers"`
	}
	rows := make([]projectRow, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, projectRow{ID: p.ID, Name: p.Name, Status: p.Status, Questions: len(p.Questions), Answers: len(p.Answers)})
	}
	return jsonResult(map[string]any{"projects": rows})
}

func (s *Server) getProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	project, err := s.svc.Projects.GetProject(ctx, id)
	if err != nil {
		return toolError("get project", err), nil
	}
	return jsonResult(map[string]any{"project": project})
}

func (s *Server) createProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload := domain.CreateProjectPayload{
		Name:              name,
		QuestionnaireText: req.GetString("questionnaire_text", ""),
	}
	if ids := req.GetStringSlice("document_ids", nil); len(ids) > 0 {
		payload.Scope = domain.ProjectScope{DocumentIDs: ids}
	} else {
		payload.Scope = domain.AllDocumentsScope()
	}

	project, err := s.svc.Projects.CreateProject(ctx, payload)
	if err != nil {
		return toolError("create project", err), nil
	}
	return jsonResult(map[string]any{"project": project})
}

func (s *Server) answerQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	questionID, err := req.RequireString("question_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := s.svc.Projects.GenerateSingleAnswer(ctx, projectID, questionID)
	if err != nil {
		return toolError("answer question", err), nil
	}
	return jsonResult(map[string]any{"answer": answer})
}

func (s *Server) generateAllAnswers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.Projects.GetProject(ctx, projectID); err != nil {
		return toolError("generate answers", err), nil
	}
	submitted, err := s.svc.Requests.Submit(ctx, domain.RequestGenerateAllAnswers, domain.ProjectPayload{ProjectID: projectID})
	if err != nil {
		return toolError("generate answers", err), nil
	}
	return jsonResult(map[string]any{"request": submitted})
}

func (s *Server) reviewAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answerID, err := req.RequireString("answer_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawStatus, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, ok := domain.ParseAnswerStatus(rawStatus)
	if !ok {
		return mcp.NewToolResultErrorf("unknown answer status %q", rawStatus), nil
	}

	update := domain.AnswerUpdate{Status: status}
	if manual, ok := req.GetArguments()["manual_answer"].(string); ok {
		update.ManualAnswer = &manual
	}
	answer, err := s.svc.Projects.UpdateAnswer(ctx, projectID, answerID, update)
	if err != nil {
		return toolError("review answer", err), nil
	}
	return jsonResult(map[string]any{"answer": answer})
}

func (s *Server) addGroundTruth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	questionID, err := req.RequireString("question_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("answer_text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gt, err := s.svc.Evaluation.AddGroundTruth(ctx, questionID, text, req.GetString("source", ""))
	if err != nil {
		return toolError("add ground truth", err), nil
	}
	return jsonResult(map[string]any{"ground_truth": gt})
}

func (s *Server) evaluate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Evaluation.EvaluateProject(ctx, projectID)
	if err != nil {
		return toolError("evaluate project", err), nil
	}
	return jsonResult(map[string]any{
		"results": results,
		"summary": usecase.Summarize(results),
	})
}

func (s *Server) getRequest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("request_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	found, err := s.svc.Requests.GetRequest(ctx, id)
	if err != nil {
		return toolError("get request", err), nil
	}
	return jsonResult(map[string]any{"request": found})
}
