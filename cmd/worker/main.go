package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"campus-assistant/handler"
	"campus-assistant/internal/app"
	"campus-assistant/internal/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	ref, err := app.FromAWS(awsCfg, cfg)
	if err != nil {
		slog.Error("failed to create reference sources", "err", err)
		os.Exit(1)
	}
	// The worker function always runs the capabilities in-process.
	local, err := app.NewLocalWorker(awsCfg, cfg, ref, logger)
	if err != nil {
		slog.Error("failed to create worker", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewWorkerHandler(local, logger)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
