// Package bootstrap assembles the services shared by cmd/api and cmd/worker.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"highbid/internal/adapter/repo"
	"highbid/internal/generation"
	"highbid/internal/infra"
	"highbid/internal/infra/credentials"
	"highbid/internal/jobplatform"
	"highbid/internal/ledger"
	"highbid/internal/metrics"
	"highbid/internal/pricing"
	"highbid/internal/storage"
)

// Services is the wired object graph over one SQL executor.
type Services struct {
	Generations  *repo.GenerationRepositoryPG
	Tokens       *repo.TokenRepositoryPG
	Stats        *repo.StatsRepositoryPG
	Ledger       *ledger.Service
	Pricing      *pricing.Service
	Orchestrator *generation.Orchestrator
	Store        storage.Store
}

// Build resolves the platform credentials (environment first, then the
// integration_tokens row) and wires repositories, services and the orchestrator.
func Build(ctx context.Context, cfg *infra.Config, sql infra.SQLExecutor, logger *infra.Logger, m *metrics.Metrics) (*Services, error) {
	platformCfg := cfg.Platform
	if err := credentials.NewStore(sql).Resolve(ctx, &platformCfg); err != nil {
		return nil, fmt.Errorf("resolve job platform credentials: %w", err)
	}
	if platformCfg.ImageJobID == "" || platformCfg.SpeechJobID == "" {
		logger.Warn().
			Bool("image_job", platformCfg.ImageJobID != "").
			Bool("speech_job", platformCfg.SpeechJobID != "").
			Msg("job ids incomplete, affected generation requests will be rejected")
	}

	client, err := jobplatform.NewClient(jobplatform.Options{
		APIToken:          platformCfg.APIToken,
		BaseURL:           platformCfg.BaseURL,
		InitialDelay:      platformCfg.InitialDelay,
		PollInterval:      platformCfg.PollInterval,
		MaxAttempts:       platformCfg.MaxAttempts,
		RequestsPerSecond: platformCfg.RequestsPerSecond,
		RequestTimeout:    platformCfg.RequestTimeout,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	gens := repo.NewGenerationRepository(sql)
	ledgerRepo := repo.NewLedgerRepository(sql)
	s := &Services{
		Generations: gens,
		Tokens:      repo.NewTokenRepository(sql),
		Stats:       repo.NewStatsRepository(sql),
		Ledger:      ledger.NewService(ledgerRepo, logger, m),
		Pricing:     pricing.NewService(repo.NewPricingRepository(sql), logger),
		Store:       store,
	}

	opts := generation.Options{
		Generations:        gens,
		Prices:             s.Pricing,
		Ledger:             s.Ledger,
		Platform:           client,
		ImageJobID:         platformCfg.ImageJobID,
		SpeechJobID:        platformCfg.SpeechJobID,
		EmbedCorrelationID: platformCfg.EmbedCorrelationID,
		Lease:              cfg.Generation.LeaseDuration,
		Metrics:            m,
		Logger:             logger,
	}
	if store != nil {
		opts.Archiver = storage.NewArchiver(store, &http.Client{Timeout: 2 * time.Minute})
		logger.Info().Str("backend", store.Name()).Msg("result archiving enabled")
	}
	s.Orchestrator = generation.NewOrchestrator(opts)
	return s, nil
}
