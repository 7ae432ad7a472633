package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"dexrouter/internal/ai"
	"dexrouter/internal/cache"
	"dexrouter/internal/config"
	"dexrouter/internal/gecko"
	"dexrouter/internal/graph"
	"dexrouter/internal/refresher"
	"dexrouter/internal/router"
	"dexrouter/internal/server"
	"dexrouter/internal/storage"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main wires the route-finding service: Redis record store, market data
// client, background refresh loop, and the HTTP API with graceful shutdown
func main() {
	// Initialize structured logger with custom formatting
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Load and validate configuration from environment variables
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Initialize Redis client for the record store
	rclient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	store, err := cache.NewRedisStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create record store")
	}
	defer func() {
		_ = store.Close()
	}()

	// Pool state history in ClickHouse (optional)
	var history storage.HistorySink
	if cfg.ClickHouseAddr != "" {
		ch, err := cache.NewClickHouseStore(cfg.ClickHouseAddr, cfg.ClickHouseDatabase, cfg.ClickHouseUsername, cfg.ClickHousePassword)
		if err != nil {
			logger.WithError(err).Warn("failed to connect to ClickHouse, history recording disabled")
		} else {
			history = ch
			defer func() {
				_ = ch.Close()
			}()
		}
	}

	// Initialize AI agent for natural language queries (optional)
	var agent *ai.Agent
	aiBase := ai.AgentConfig{
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
		ClickHouseUsername: cfg.ClickHouseUsername,
		ClickHousePassword: cfg.ClickHousePassword,
		OpenRouterAPIKey:   cfg.OpenRouterAPIKey,
		Model:              cfg.AIModel,
		Logger:             logger,
	}

	// Only initialize AI when both OpenRouter and ClickHouse are configured
	if cfg.OpenRouterAPIKey != "" && cfg.ClickHouseAddr != "" {
		a, err := ai.NewAgent(ctx, aiBase)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize ai agent")
		} else {
			agent = a
			defer func() {
				_ = agent.Close() // Clean up AI resources on shutdown
			}()
		}
	}

	// Graph machinery: builder, snapshot publisher, route search engine
	builder := graph.NewBuilder(logger)
	publisher := graph.NewPublisher()
	engine := router.NewEngine(logger)

	// Market data client for tokens and pools
	market := gecko.NewClient(cfg.GeckoBaseURL, cfg.Network, cfg.GeckoRateLimit, logger)

	// Background refresh loop keeps the published snapshot current
	ref := refresher.NewRefresher(refresher.Config{
		Source:         market,
		Store:          store,
		History:        history,
		Builder:        builder,
		Publisher:      publisher,
		Interval:       cfg.RefreshInterval,
		FetchTimeout:   cfg.FetchTimeout,
		RetryBackoff:   cfg.RetryBackoff,
		MaxRetries:     cfg.MaxRetries,
		StaleThreshold: cfg.StaleThreshold,
		PoolPages:      cfg.GeckoPages,
		Logger:         logger,
	})
	go func() {
		if err := ref.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("refresher stopped")
		}
	}()

	// Create handlers with all dependencies injected
	h := &server.Handlers{
		Publisher:       publisher,
		Engine:          engine,
		Status:          ref.Status,
		AI:              agent,
		AIBaseConfig:    aiBase,
		DevMode:         cfg.DevMode,
		Logger:          logger,
		MaxHops:         cfg.MaxHops,
		TopK:            cfg.TopK,
		MinLiquidityUSD: cfg.MinLiquidityUSD,
		MaxPriceImpact:  cfg.MaxPriceImpact,
	}

	// Create HTTP server with configuration and handlers
	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh // Wait for shutdown signal
		logger.Info("shutting down")
		cancel()                               // Cancel context to stop the refresh loop
		_ = srv.Shutdown(context.Background()) // Gracefully shutdown HTTP server
	}()

	// Start the HTTP server
	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	// Wait for server to be fully shut down
	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
