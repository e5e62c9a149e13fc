// Command history-intake records patient history entries arriving over NATS.
// Requests on medrag.history.intake are answered with an IntakeReply; every
// stored entry is also announced on medrag.history.recorded.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/medrag/engine/assistant"
	"github.com/WessleyAI/medrag/internal/app"
	"github.com/WessleyAI/medrag/pkg/natsutil"
)

func main() {
	var (
		queue       = flag.String("queue", "history-intake", "NATS queue group")
		metricsAddr = flag.String("metrics", ":9091", "metrics listen address; empty disables")
	)
	flag.Parse()

	app.LoadDotEnv()
	cfg, err := app.Load(os.Getenv)
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if cfg.NATSURL == "" {
		cfg.NATSURL = nats.DefaultURL
	}

	if err := run(cfg, *queue, *metricsAddr, logger); err != nil {
		logger.Error("history intake exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg app.Config, queue, metricsAddr string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("wire assistant: %w", err)
	}
	defer a.Close()

	in := &intake{svc: a.Assistant, pub: a.NATS, logger: logger}
	sub, err := natsutil.QueueSubscribe(a.NATS, assistant.SubjectHistoryIntake, queue, in.handle, in.malformed)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", assistant.SubjectHistoryIntake, err)
	}
	defer sub.Drain()
	logger.Info("history intake listening", "subject", assistant.SubjectHistoryIntake, "queue", queue)

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: a.Metrics.Handler(), ReadTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "err", err)
			}
		}()
		defer srv.Close()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}
