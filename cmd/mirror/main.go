package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/api"
	"github.com/mirrorlab/mirror/internal/config"
	"github.com/mirrorlab/mirror/internal/embedding"
	"github.com/mirrorlab/mirror/internal/insights"
	"github.com/mirrorlab/mirror/internal/profile"
	"github.com/mirrorlab/mirror/internal/provider"
	"github.com/mirrorlab/mirror/internal/quiz"
	"github.com/mirrorlab/mirror/internal/ratelimit"
	"github.com/mirrorlab/mirror/internal/reflections"
	"github.com/mirrorlab/mirror/internal/store"
	"github.com/mirrorlab/mirror/internal/translate"
	"github.com/mirrorlab/mirror/internal/vectorstore"
	"github.com/mirrorlab/mirror/internal/wimts"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Mirror...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/mirror.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Model: pc.Model, Extra: pc.Extra,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}

	// PostgreSQL is required: everything downstream reads and writes it.
	db, err := store.New(cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("PostgreSQL unavailable", zap.Error(err))
	}
	if err := db.Migrate(context.Background(), "migrations"); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Rate limiting degrades to unlimited when Redis is down.
	var limiter api.RateLimiter
	if cfg.Database.Redis.URL != "" {
		rl, rlErr := ratelimit.New(cfg.Database.Redis.URL, cfg.RateLimit.GeneratePerMinute, logger)
		if rlErr != nil {
			logger.Warn("Redis unavailable, running without rate limiting", zap.Error(rlErr))
		} else {
			limiter = rl
			defer rl.Close()
		}
	}

	// Similarity search needs both the embeddings endpoint and Qdrant.
	var similar *reflections.Service
	if cfg.Embedding.Endpoint != "" && cfg.Database.Qdrant.Host != "" {
		embedder := embedding.NewClient(embedding.Config{
			Endpoint:  cfg.Embedding.Endpoint,
			Model:     cfg.Embedding.Model,
			APIKey:    cfg.Embedding.APIKey,
			Dimension: cfg.Embedding.Dimension,
		})
		qd, qdErr := vectorstore.NewClient(vectorstore.Config{
			Host: cfg.Database.Qdrant.Host,
			Port: cfg.Database.Qdrant.Port,
		})
		if qdErr != nil {
			logger.Warn("Qdrant unavailable, running without similarity search", zap.Error(qdErr))
		} else {
			sim, simErr := reflections.NewService(context.Background(), db, embedder, qd, logger)
			if simErr != nil {
				logger.Warn("similarity service setup failed", zap.Error(simErr))
			} else {
				similar = sim
			}
			defer qd.Close()
		}
	}

	// Wire services
	profileSvc := profile.NewService(db, db, router, logger,
		profile.WithConfigVersion(cfg.Profile.ConfigVersion),
		profile.WithTimeout(time.Duration(cfg.Profile.RequestTimeout)*time.Second),
	)
	insightsSvc := insights.NewService(db, db, router, logger)
	quizSvc := quiz.NewService(db, db, router, logger)
	wimtsSvc := wimts.NewService(db, db, router, logger)
	translateSvc := translate.NewService(router, logger)

	handler := api.NewHandler(profileSvc, insightsSvc, quizSvc, wimtsSvc, translateSvc, similar, db, db, db, limiter, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Mirror listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Mirror...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	db.Close()
}
