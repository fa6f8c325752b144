package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/ddq-assistant/internal/adapters/cli"
	"github.com/kirillkom/ddq-assistant/internal/bootstrap"
	"github.com/kirillkom/ddq-assistant/internal/config"
	"github.com/kirillkom/ddq-assistant/internal/observability/logging"
)

const service = "ddqctl"

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	// Commands run synchronously, so nothing consumes a remote queue.
	cfg.QueueBackend = "local"
	logging.InstallStderr(service, envOr("LOG_LEVEL", "warn"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func(ctx context.Context) (cli.Services, func(), error) {
		app, err := bootstrap.New(ctx, cfg, service, nil)
		if err != nil {
			return cli.Services{}, nil, err
		}
		return cli.Services{
			Documents:  app.Documents,
			Projects:   app.Projects,
			Answers:    app.Answers,
			Evaluation: app.Evaluation,
			Retriever:  app.Retriever,
		}, app.Close, nil
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
