package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"symptomai/internal/bootstrap"
	"symptomai/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// ---- Handler ----
	h, cleanup, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to build handler", "err", err)
		os.Exit(1)
	}
	defer func() { _ = cleanup() }()

	lambda.Start(h.Handle)
}
