package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	mcpadapter "github.com/kirillkom/ddq-assistant/internal/adapters/mcp"
	"github.com/kirillkom/ddq-assistant/internal/bootstrap"
	"github.com/kirillkom/ddq-assistant/internal/config"
	"github.com/kirillkom/ddq-assistant/internal/observability/logging"
)

const (
	service = "mcp"
	version = "0.1.0"
)

// stdout carries the protocol, so logs go to stderr.
func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logging.InstallStderr(service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, service, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.QueueBackend == "" || cfg.QueueBackend == "local" {
		go func() {
			if err := app.RunInProcess(ctx); err != nil {
				slog.Error("in_process_worker_failed", "error", err)
			}
		}()
	}

	srv := mcpadapter.NewServer("ddq-assistant", version, mcpadapter.Services{
		Documents:  app.Documents,
		Projects:   app.Projects,
		Requests:   app.Requests,
		Evaluation: app.Evaluation,
		Retriever:  app.Retriever,
	}, cfg.RetrievalTopK)

	slog.Info("mcp_serving_stdio", "llm_provider", app.Provider.Name)
	if err := srv.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
