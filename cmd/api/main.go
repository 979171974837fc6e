package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"highbid/internal/auth"
	"highbid/internal/bootstrap"
	"highbid/internal/http/handlers"
	httpapi "highbid/internal/http/httpapi"
	"highbid/internal/infra"
	"highbid/internal/infra/geoip"
	"highbid/internal/metrics"
	"highbid/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	m := metrics.New()

	services, err := bootstrap.Build(ctx, cfg, runner, &logger, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire services")
	}

	sessions, err := auth.NewSessionVerifier(cfg.SessionSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid session secret")
	}
	gate := auth.NewGate(services.Tokens, sessions, cfg.SessionCookie, cfg.IsAdmin, &logger)

	var counter middleware.Counter
	redisClient, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, rate limits kept in memory")
	} else if redisClient != nil {
		defer redisClient.Close()
		counter = middleware.NewRedisCounter(redisClient, "highbid:ratelimit:")
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.Country
	}

	app := handlers.NewApp(services.Orchestrator, services.Pricing, services.Ledger, services.Tokens, services.Stats, &logger)
	app.SyncGeneration = cfg.Generation.Sync
	app.Ping = dbpool.Ping

	router := httpapi.NewRouter(app, httpapi.Options{
		Gate:          gate,
		Logger:        &logger,
		Metrics:       m,
		Counter:       counter,
		CountryLookup: lookup,
		CORSOrigins:   cfg.CORSOrigins,
		IPLimit:       cfg.RateLimitPerMin,
		TokenLimit:    cfg.TokenRateLimit,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Bool("sync_generation", cfg.Generation.Sync).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
