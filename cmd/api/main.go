// Package main implements the medrag API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/WessleyAI/medrag/internal/app"
	"github.com/WessleyAI/medrag/pkg/mid"
)

func main() {
	app.LoadDotEnv()
	cfg, err := app.Load(os.Getenv)
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg app.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("wire assistant: %w", err)
	}
	defer a.Close()

	// Seed before serving so the first query sees the knowledge base.
	a.Seed(ctx, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newHandler(cfg, a, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// newHandler builds the routed, middleware-wrapped HTTP handler.
func newHandler(cfg app.Config, a *app.App, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	routes(mux, a.Assistant, logger)
	mux.Handle("GET /metrics", a.Metrics.Handler())

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), max(int(cfg.RateLimitRPS), 1))
	}

	// OTel copies the request, so it sits outside everything that reads
	// the mux pattern back from it.
	return mid.Chain(mux,
		mid.OTel("medrag-api"),
		mid.Recover(logger),
		mid.RequestID(),
		mid.CORS(cfg.CORSOrigin),
		mid.Logger(logger),
		mid.Metrics(a.Metrics),
		mid.RateLimit(limiter),
	)
}
