package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"campus-assistant/handler"
	"campus-assistant/internal/app"
	"campus-assistant/internal/config"
)

const warmTimeout = 5 * time.Second

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Reference data ----
	ref, err := app.FromAWS(awsCfg, cfg)
	if err != nil {
		slog.Error("failed to create reference sources", "err", err)
		os.Exit(1)
	}
	warmCtx, cancel := context.WithTimeout(ctx, warmTimeout)
	if err := ref.Catalog.Warm(warmCtx); err != nil {
		// Lists are retried lazily on the first turn that needs them.
		slog.Warn("catalog warm-up failed", "err", err)
	}
	cancel()

	// ---- Router ----
	dispatcher, err := app.NewDispatcher(awsCfg, cfg, ref, logger)
	if err != nil {
		slog.Error("failed to create worker dispatcher", "err", err)
		os.Exit(1)
	}
	memory, err := app.NewMemory(awsCfg, cfg, logger)
	if err != nil {
		slog.Error("failed to create memory store", "err", err)
		os.Exit(1)
	}
	router, err := app.NewRouter(cfg, ref.Catalog, dispatcher, memory, logger)
	if err != nil {
		slog.Error("failed to create router", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewLexHandler(router, logger)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
