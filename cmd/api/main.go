package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/kirillkom/ddq-assistant/internal/adapters/http"
	"github.com/kirillkom/ddq-assistant/internal/bootstrap"
	"github.com/kirillkom/ddq-assistant/internal/config"
	"github.com/kirillkom/ddq-assistant/internal/observability/logging"
	"github.com/kirillkom/ddq-assistant/internal/observability/metrics"
)

const service = "api"

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logging.Install(service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, service, httpMetrics.Registry())
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Without NATS there is no separate worker, so queued requests run here.
	if strings.EqualFold(cfg.QueueBackend, "local") || cfg.QueueBackend == "" {
		go func() {
			if err := app.RunInProcess(ctx); err != nil {
				slog.Error("in_process_worker_failed", "error", err)
			}
		}()
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Documents:  app.Documents,
		Projects:   app.Projects,
		Answers:    app.Answers,
		Requests:   app.Requests,
		Tracker:    app.Requests,
		Evaluation: app.Evaluation,
		Retriever:  app.Retriever,
	}).WithMetrics(httpMetrics)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr, "queue", cfg.QueueBackend, "llm_provider", app.Provider.Name)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
