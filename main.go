package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/placeworker/config"
	"sjsage522/placeworker/internal/scraper"
	"sjsage522/placeworker/logger"
	"sjsage522/placeworker/services/cache"
	"sjsage522/placeworker/services/publisher"
	"sjsage522/placeworker/services/store"
	"sjsage522/placeworker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("base_url", cfg.BaseURL).
		Dur("scrape_interval", cfg.ScrapeInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	// Wire the scrape pipeline
	sessions := scraper.NewChromeSessionFactory(scraper.SessionConfig{
		Headless:       cfg.Headless,
		UserAgent:      cfg.UserAgent,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		LaunchTimeout:  cfg.LaunchTimeout,
		NavTimeout:     cfg.NavTimeout,
		SettleDelay:    cfg.SettleDelay,
		OpsPerSecond:   cfg.OpsPerSecond,
		ProxyServer:    cfg.ProxyServer,
	})
	strategy := scraper.NewPlaceStrategy(cfg.BaseURL)
	runner := scraper.NewScraperWithPolicy(sessions, strategy, cfg.MaxAttempts, cfg.RetryBackoff)

	// Create and start worker
	w := worker.NewWorker(
		ctx,
		runner,
		services.Store,
		services.Publisher,
		services.Cache,
		cfg.ScrapeInterval,
		cfg.RunGateTTL,
	)

	workerDone := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting place worker")
		workerDone <- w.Start()
	}()

	// Wait for shutdown signal or worker error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
	case err := <-workerDone:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     store.PlaceStore
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Initialize cache service
	cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
	if cacheService == nil {
		return nil, fmt.Errorf("failed to create cache service")
	}
	services.Cache = cacheService

	logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)

	// Initialize publisher
	redisPublisher := publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if redisPublisher == nil {
		return nil, fmt.Errorf("failed to create redis publisher")
	}
	services.Publisher = redisPublisher

	logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	// Initialize place store
	placeStore, err := store.NewPostgresStore(ctx, cfg.DSN())
	if err != nil {
		services.Cleanup()
		return nil, err
	}
	services.Store = placeStore

	logger.Info("Connected to Postgres at %s:%d (DB: %s)", cfg.DBHost, cfg.DBPort, cfg.DBName)

	return services, nil
}
