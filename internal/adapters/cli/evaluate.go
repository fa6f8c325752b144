package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

const groundTruthSource = "ddqctl"

// groundTruthEntry pairs a reference answer with a question, matched by
// order when set and by question text otherwise.
type groundTruthEntry struct {
	Order    int    `yaml:"order"`
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

func (a *app) evaluateCommand() *cobra.Command {
	var (
		flags       projectFlags
		groundTruth string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score generated answers against reference answers",
		Long: `Generates answers when the project has none, records the reference answers
from --ground-truth (YAML or JSON list of {order, question, answer}) and
prints per-question scores with the project summary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var entries []groundTruthEntry
			if groundTruth != "" {
				raw, err := os.ReadFile(groundTruth)
				if err != nil {
					return fmt.Errorf("read ground truth: %w", err)
				}
				if err := yaml.Unmarshal(raw, &entries); err != nil {
					return fmt.Errorf("parse ground truth: %w", err)
				}
			}
			return a.with(cmd, func(ctx context.Context, svc Services) error {
				project, err := flags.resolve(ctx, svc)
				if err != nil {
					return err
				}
				if len(project.Answers) == 0 {
					if _, err := svc.Answers.GenerateAll(ctx, project.ID, nil); err != nil {
						return fmt.Errorf("generate answers: %w", err)
					}
				}
				for _, e := range entries {
					q, ok := matchQuestion(project.Questions, e)
					if !ok {
						fmt.Fprintf(cmd.ErrOrStderr(), "no question matches ground truth %q\n", truncate(e.Question, 60))
						continue
					}
					if _, err := svc.Evaluation.AddGroundTruth(ctx, q.ID, e.Answer, groundTruthSource); err != nil {
						return fmt.Errorf("add ground truth: %w", err)
					}
				}

				results, err := svc.Evaluation.EvaluateProject(ctx, project.ID)
				if err != nil {
					return fmt.Errorf("evaluate project: %w", err)
				}
				summary, err := svc.Evaluation.Summary(ctx, project.ID)
				if err != nil {
					return fmt.Errorf("evaluation summary: %w", err)
				}
				if a.json {
					return printJSON(cmd, map[string]any{"project_id": project.ID, "results": results, "summary": summary})
				}
				for _, r := range results {
					if !r.Graded {
						cmd.Printf("%s  ungraded\n", r.QuestionID)
						continue
					}
					cmd.Printf("%s  accuracy %.3f  citations %.3f  overall %.3f\n",
						r.QuestionID, r.AccuracyScore, r.CitationQualityScore, r.OverallScore)
				}
				cmd.Printf("evaluated %d/%d questions, average overall %.3f\n",
					summary.EvaluatedQuestions, summary.TotalQuestions, summary.AverageOverallScore)
				return nil
			})
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVarP(&groundTruth, "ground-truth", "g", "", "reference answers file")
	return cmd
}

func matchQuestion(questions []domain.Question, e groundTruthEntry) (domain.Question, bool) {
	want := normalizeQuestion(e.Question)
	for _, q := range questions {
		if e.Order > 0 {
			if q.Order == e.Order {
				return q, true
			}
			continue
		}
		if want != "" && normalizeQuestion(q.Text) == want {
			return q, true
		}
	}
	return domain.Question{}, false
}

func normalizeQuestion(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
