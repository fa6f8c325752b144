package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

// projectFlags select an existing project or describe a new one.
type projectFlags struct {
	projectID     string
	name          string
	questionnaire string
	docs          []string
	docIDs        []string
}

func (f *projectFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.projectID, "project", "", "existing project id")
	cmd.Flags().StringVar(&f.name, "name", "ddqctl", "name of a new project")
	cmd.Flags().StringVarP(&f.questionnaire, "questionnaire", "q", "", "questionnaire file for a new project")
	cmd.Flags().StringArrayVarP(&f.docs, "doc", "d", nil, "reference document to ingest and scope to (repeatable)")
	cmd.Flags().StringArrayVar(&f.docIDs, "doc-id", nil, "already indexed document id to scope to (repeatable)")
}

// resolve loads --project, or ingests the documents and creates a project
// from the questionnaire.
func (f *projectFlags) resolve(ctx context.Context, svc Services) (*domain.Project, error) {
	if f.projectID != "" {
		return svc.Projects.GetProject(ctx, f.projectID)
	}
	if f.questionnaire == "" {
		return nil, errors.New("either --project or --questionnaire is required")
	}

	docs, err := ingestFiles(ctx, svc.Documents, f.docs)
	if err != nil {
		return nil, err
	}
	scope := domain.AllDocumentsScope()
	if ids := append(documentIDs(docs), f.docIDs...); len(ids) > 0 {
		scope = domain.ProjectScope{DocumentIDs: ids}
	}

	questionnaire, err := uploadFile(ctx, svc.Documents, f.questionnaire)
	if err != nil {
		return nil, err
	}
	return svc.Projects.CreateProject(ctx, domain.CreateProjectPayload{
		Name:             f.name,
		QuestionnaireDoc: questionnaire.ID,
		Scope:            scope,
	})
}

func (a *app) createCommand() *cobra.Command {
	var flags projectFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project from a questionnaire",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.projectID != "" {
				return errors.New("create does not take --project")
			}
			return a.with(cmd, func(ctx context.Context, svc Services) error {
				project, err := flags.resolve(ctx, svc)
				if err != nil {
					return err
				}
				if a.json {
					return printJSON(cmd, project)
				}
				cmd.Printf("project %s (%s): %d questions\n", project.ID, project.Name, len(project.Questions))
				for _, q := range project.Questions {
					cmd.Printf("  %2d. [%s] %s\n", q.Order, q.Section, q.Text)
				}
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func (a *app) answerCommand() *cobra.Command {
	var flags projectFlags
	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Generate answers for every question of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.with(cmd, func(ctx context.Context, svc Services) error {
				project, answers, err := generate(ctx, cmd, svc, &flags)
				if err != nil {
					return err
				}
				if a.json {
					return printJSON(cmd, map[string]any{"project_id": project.ID, "answers": answers})
				}
				printAnswers(cmd, project, answers)
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

// generate resolves the project and answers all of its questions, reporting
// batch progress on stderr.
func generate(ctx context.Context, cmd *cobra.Command, svc Services, flags *projectFlags) (*domain.Project, []domain.Answer, error) {
	project, err := flags.resolve(ctx, svc)
	if err != nil {
		return nil, nil, err
	}
	answers, err := svc.Answers.GenerateAll(ctx, project.ID, func(p domain.Progress) {
		fmt.Fprintf(cmd.ErrOrStderr(), "answered %d/%d (%.0f%%)\n", p.Current, p.Total, p.Percent)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("generate answers: %w", err)
	}
	return project, answers, nil
}

func printAnswers(cmd *cobra.Command, project *domain.Project, answers []domain.Answer) {
	questions := make(map[string]domain.Question, len(project.Questions))
	for _, q := range project.Questions {
		questions[q.ID] = q
	}
	for _, a := range answers {
		q := questions[a.QuestionID]
		cmd.Printf("%d. %s\n", q.Order, q.Text)
		cmd.Printf("   [%s, confidence %.2f] %s\n", a.Status, a.ConfidenceScore, strings.TrimSpace(a.EffectiveText()))
		for _, c := range a.Citations {
			cmd.Printf("   - %s: %s\n", c.DocumentID, truncate(c.Text, 100))
		}
	}
}
