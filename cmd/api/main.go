package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sitelens/sitelens/internal/analysis"
	"github.com/sitelens/sitelens/internal/api"
	"github.com/sitelens/sitelens/internal/browser"
	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/domain"
	"github.com/sitelens/sitelens/internal/observability"
	"github.com/sitelens/sitelens/internal/pipeline"
	"github.com/sitelens/sitelens/internal/provider"
	"github.com/sitelens/sitelens/internal/repository/memory"
	"github.com/sitelens/sitelens/internal/repository/postgres"
	redisstore "github.com/sitelens/sitelens/internal/repository/redis"
	"github.com/sitelens/sitelens/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(string(cfg.Env), cfg.GetLogLevel())
	defer logger.Sync()

	logger.Info("Starting SiteLens API",
		zap.String("version", cfg.App.Version),
		zap.String("environment", string(cfg.Env)),
	)

	observability.InitMetrics(cfg.App.Name)

	// Optional screenshot archive
	var archive *storage.Archive
	var archiver pipeline.Archiver
	if cfg.Storage.Enabled {
		a, err := storage.NewArchive(cfg.Storage)
		if err != nil {
			logger.Warn("Screenshot archive unavailable", zap.Error(err))
		} else {
			archive, archiver = a, a
			logger.Info("Screenshot archive enabled", zap.String("bucket", cfg.Storage.Bucket))
		}
	}

	// Report store backend
	var store domain.ReportStore
	var storeHealth api.HealthChecker
	switch cfg.Store.Backend {
	case "redis":
		s, err := redisstore.New(cfg.Redis, cfg.Store.ReportTTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer s.Close()
		store, storeHealth = s, s
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr()))
	case "postgres":
		db, err := postgres.New(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		s, err := postgres.NewStore(db)
		if err != nil {
			logger.Fatal("Failed to prepare report store", zap.Error(err))
		}
		store, storeHealth = s, db
		logger.Info("Connected to PostgreSQL",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
		)

		sweepCtx, stopSweep := context.WithCancel(context.Background())
		defer stopSweep()
		go runRetentionSweep(sweepCtx, s, archive, cfg.Store, logger)
	default:
		store = memory.New()
		logger.Warn("Using in-memory report store, audits will not survive a restart")
	}

	// Browser session, shared across audits for the process lifetime
	session := browser.NewSession(cfg.Browser, logger)
	defer session.Stop()
	acquirer := browser.NewPageAcquirer(session, cfg.Browser, logger)

	// Vision providers in priority order
	providers := []provider.Client{
		provider.NewAnthropicClient(cfg.Anthropic),
		provider.NewOpenAIClient(cfg.OpenAI),
		provider.NewGeminiClient(cfg.Gemini),
	}
	orchestrator := analysis.NewOrchestrator(providers, logger)

	service := pipeline.NewService(cfg.Pipeline, store, acquirer, orchestrator, archiver, logger)

	router := api.NewRouter(api.RouterConfig{
		Service:        service,
		Logger:         logger,
		EnableCORS:     true,
		RateLimit:      cfg.Server.RateLimit,
		MaxRequestSize: cfg.Server.MaxRequestSize,
		StoreHealth:    storeHealth,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", zap.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("Server error", zap.Error(err))

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed, forcing close", zap.Error(err))
			server.Close()
		}

		logger.Info("Server stopped gracefully")
	}
}

// runRetentionSweep periodically deletes reports past the retention window,
// along with their archived screenshots. Redis expires reports through key
// TTLs; the Postgres backend needs this sweep.
func runRetentionSweep(ctx context.Context, store *postgres.Store, archive *storage.Archive, cfg config.StoreConfig, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := store.DeleteExpired(ctx, cfg.ReportTTL)
			if err != nil {
				logger.Warn("Report retention sweep failed", zap.Error(err))
				continue
			}
			if len(expired) == 0 {
				continue
			}
			if archive != nil {
				for _, id := range expired {
					for _, kind := range []string{"full", "mobile"} {
						if err := archive.Delete(ctx, pipeline.ScreenshotKey(id, kind)); err != nil {
							logger.Warn("Archived screenshot cleanup failed",
								zap.String("report_id", id.String()),
								zap.Error(err))
						}
					}
				}
			}
			logger.Info("Expired reports deleted", zap.Int("count", len(expired)))
		}
	}
}

// initLogger creates a configured zap logger
func initLogger(env, level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
