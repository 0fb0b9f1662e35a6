// Package bootstrap wires configuration into a ready handler. Both entry
// points in cmd/ go through it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"symptomai/handler"
	"symptomai/internal/account"
	"symptomai/internal/config"
	"symptomai/internal/integrations/analysis"
	"symptomai/internal/integrations/paramstore"
	"symptomai/internal/repository"
	"symptomai/internal/storage"
	"symptomai/internal/usecase"
)

const paramCacheTTL = 15 * time.Minute

// Build returns the handler and a cleanup func that releases the storage
// backend.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*handler.Handler, func() error, error) {
	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("bootstrap: load AWS config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	backend, cleanup, err := openBackend(cfg, loadAWS)
	if err != nil {
		return nil, nil, err
	}

	analysisOpts := []analysis.Option{
		analysis.WithHTTPClient(&http.Client{Timeout: cfg.AnalysisTimeout}),
	}
	if cfg.ParamPrefix != "" {
		awsc, err := loadAWS()
		if err != nil {
			_ = cleanup()
			return nil, nil, err
		}
		ps, err := paramstore.New(awsssm.NewFromConfig(awsc), paramstore.WithCacheTTL(paramCacheTTL))
		if err != nil {
			_ = cleanup()
			return nil, nil, fmt.Errorf("bootstrap: create SSM client: %w", err)
		}
		analysisOpts = append(analysisOpts, analysis.WithParamStore(ps, cfg.ParamPrefix))
	}
	analyzer, err := analysis.NewClient(cfg.AnalysisURL, analysisOpts...)
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("bootstrap: create analysis client: %w", err)
	}

	accounts, err := account.NewService(backend.Namespace(storage.AccountsNamespace))
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("bootstrap: create account service: %w", err)
	}
	app, err := usecase.NewApp(backend, accounts, analyzer, logger)
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("bootstrap: create app: %w", err)
	}
	h, err := handler.NewHandler(app, handler.WithLogger(logger))
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("bootstrap: create handler: %w", err)
	}

	logger.Info("symptomai ready",
		"storage", cfg.StorageBackend,
		"analysis_url", cfg.AnalysisURL,
		"param_store", cfg.ParamPrefix != "",
	)
	return h, cleanup, nil
}

func openBackend(cfg *config.Config, loadAWS func() (aws.Config, error)) (storage.Backend, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StorageBackend {
	case config.BackendDynamoDB:
		awsc, err := loadAWS()
		if err != nil {
			return nil, nil, err
		}
		client, err := repository.New(awsdynamodb.NewFromConfig(awsc), cfg.StateTable,
			repository.WithTTL(cfg.StateTTL),
			repository.WithoutTTL(storage.AccountsNamespace),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: create state client: %w", err)
		}
		return client, noop, nil
	case config.BackendSQLite:
		db, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: open sqlite: %w", err)
		}
		return db, db.Close, nil
	case config.BackendMemory:
		return storage.NewMemory(), noop, nil
	}
	return nil, nil, fmt.Errorf("bootstrap: unknown storage backend %q", cfg.StorageBackend)
}
