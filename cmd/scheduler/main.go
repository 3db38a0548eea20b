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
	"yardguard_backend/internal/leads"
	"yardguard_backend/internal/notification"
	"yardguard_backend/internal/scheduler"
	"yardguard_backend/platform/config"
	"yardguard_backend/platform/db"
	"yardguard_backend/platform/logger"
	"yardguard_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	})
	defer rdb.Close()

	eventBus := events.NewInMemoryBus(log)

	val := validator.New()

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}

	aiClient := initAIClient(ctx, cfg, log)

	sender := initEmailSender(cfg, log)

	// The worker shares the leads module wiring with the API binary so both
	// resolve the same orchestrator and repository behavior.
	leadsModule := leads.NewModule(pool, eventBus, storageSvc, rdb, aiClient, val, cfg, log)

	notificationModule := notification.NewModule(sender, leadsModule.Repository(), storageSvc, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	repo := leadsModule.Repository()
	enqueuer := scheduler.NewClient(cfg)
	defer func() { _ = enqueuer.Close() }()

	retrySweep := scheduler.NewRetrySweep(repo, enqueuer, cfg, log)
	go retrySweep.Run(ctx)

	retentionSweep := scheduler.NewRetentionSweep(repo, storageSvc, cfg, cfg, log)
	go retentionSweep.Run(ctx)

	worker := scheduler.NewWorker(cfg, leadsModule.Orchestrator(), log)
	worker.Run(ctx)

	log.Info("scheduler stopped")
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
