package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alpaclub/config"
	httpHandler "alpaclub/internal/adapter/http/handler"
	pgStorage "alpaclub/internal/adapter/storage/postgres"
	redisStorage "alpaclub/internal/adapter/storage/redis"
	"alpaclub/internal/core/ports"
	"alpaclub/internal/service"
	"alpaclub/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Alpaclub")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories and Redis stores
	alpacaRepo := pgStorage.NewAlpacaRepo(pool)
	bidLockStore := redisStorage.NewBidLockStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	hashSvc := service.NewBcryptHashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	authSvc := service.NewAdminAuthService(cfg.Admin.Username, cfg.Admin.Password, tokenSvc, log)
	alpacaSvc := service.NewAlpacaService(
		alpacaRepo,
		hashSvc,
		nil, // payment verification handled by the max bid cap for now
		bidLockStore,
		time.Now,
		cfg.Game.Cooldown,
		cfg.Game.MaxBid,
		log,
	)

	// Provision the herd on first boot
	seeder := service.NewSeeder(alpacaRepo, hashSvc, cfg.Game.SeedCount, cfg.Game.SeedValue, cfg.Game.SeedSecret, log)
	if err := seeder.EnsureSeeded(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed alpacas")
	}

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AlpacaSvc:      alpacaSvc,
		AuthSvc:        authSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
