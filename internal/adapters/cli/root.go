// Package cli is the ddqctl command tree. Every command runs the pipeline
// in-process against the configured backends.
package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
)

type Services struct {
	Documents  ports.DocumentService
	Projects   ports.ProjectService
	Answers    ports.AnswerGenerator
	Evaluation ports.EvaluationService
	Retriever  ports.Retriever
}

// Opener builds the services for one invocation. The returned func releases
// them.
type Opener func(ctx context.Context) (Services, func(), error)

type app struct {
	open Opener
	json bool
}

func NewRootCommand(open Opener) *cobra.Command {
	a := &app{open: open}
	root := &cobra.Command{
		Use:           "ddqctl",
		Short:         "Answer due-diligence questionnaires from a document corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&a.json, "json", false, "print results as JSON")

	root.AddCommand(
		a.ingestCommand(),
		a.createCommand(),
		a.answerCommand(),
		a.evaluateCommand(),
		a.searchCommand(),
	)
	return root
}

// with opens the services, runs fn and releases them.
func (a *app) with(cmd *cobra.Command, fn func(ctx context.Context, svc Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, release, err := a.open(ctx)
	if err != nil {
		return fmt.Errorf("open services: %w", err)
	}
	defer release()
	return fn(ctx, svc)
}

// ingestFiles uploads and indexes each path, returning the indexed documents
// in argument order.
func ingestFiles(ctx context.Context, docs ports.DocumentService, paths []string) ([]*domain.Document, error) {
	out := make([]*domain.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := uploadFile(ctx, docs, path)
		if err != nil {
			return nil, err
		}
		indexed, err := docs.IndexDocument(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", path, err)
		}
		out = append(out, indexed)
	}
	return out, nil
}

func uploadFile(ctx context.Context, docs ports.DocumentService, path string) (*domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	doc, err := docs.Upload(ctx, name, mime.TypeByExtension(filepath.Ext(name)), f)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", path, err)
	}
	return doc, nil
}

func documentIDs(docs []*domain.Document) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}
