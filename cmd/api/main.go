package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yardguard_backend/internal/adapters/storage"
	"yardguard_backend/internal/email"
	"yardguard_backend/internal/events"
	apphttp "yardguard_backend/internal/http"
	"yardguard_backend/internal/http/router"
	"yardguard_backend/internal/leads"
	"yardguard_backend/internal/notification"
	"yardguard_backend/migrations"
	"yardguard_backend/platform/config"
	"yardguard_backend/platform/db"
	"yardguard_backend/platform/logger"
	"yardguard_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"
)

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Redis backs the sliding-window rate limiter; asynq opens its own
	// connections from the same settings.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	})
	defer rdb.Close()

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Storage service for yard photos (MinIO)
	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	ensureBucket(ctx, log, storageSvc, "raw-uploads", cfg.GetMinioBucketRawUploads())
	ensureBucket(ctx, log, storageSvc, "processed-images", cfg.GetMinioBucketProcessedImages())
	log.Info(
		"storage service initialized",
		"rawUploadsBucket", cfg.GetMinioBucketRawUploads(),
		"processedImagesBucket", cfg.GetMinioBucketProcessedImages(),
	)

	aiClient := initAIClient(ctx, cfg, log)

	sender := initEmailSender(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsModule := leads.NewModule(pool, eventBus, storageSvc, rdb, aiClient, val, cfg, log)

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.NewModule(sender, leadsModule.Repository(), storageSvc, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initAIClient creates the shared Gemini client. A missing API key is not
// fatal: the agents degrade to their fallback output.
func initAIClient(ctx context.Context, cfg *config.Config, log *logger.Logger) *genai.Client {
	if !cfg.IsAIEnabled() {
		log.Warn("GOOGLE_AI_API_KEY not configured; AI enrichment disabled")
		return nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGoogleAIAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Error("failed to initialize AI client", "error", err)
		return nil
	}

	log.Info("AI client initialized", "visualizerModel", cfg.GetVisualizerModel(), "estimatorModel", cfg.GetEstimatorModel())
	return client
}

func initEmailSender(cfg *config.Config, log *logger.Logger) email.Sender {
	if !cfg.GetEmailEnabled() {
		log.Warn("email delivery disabled; proposals will be marked sent without delivery")
		return email.NoopSender{}
	}

	return email.NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}

// withRetry runs fn up to attempts times with exponential backoff, honoring
// context cancellation between attempts.
func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	var lastErr error
	delay := baseDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		log.Warn(name+" failed, retrying", "attempt", attempt, "error", lastErr, "delay", delay.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
