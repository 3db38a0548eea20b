// Package leads provides the lead lifecycle bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"yardguard_backend/internal/adapters/storage"
	apphttp "yardguard_backend/internal/http"
	"yardguard_backend/internal/leads/agent"
	"yardguard_backend/internal/leads/handler"
	"yardguard_backend/internal/leads/repository"
	"yardguard_backend/internal/leads/service"
	"yardguard_backend/internal/ratelimit"
	"yardguard_backend/internal/scheduler"
	"yardguard_backend/platform/config"
	"yardguard_backend/platform/logger"
	"yardguard_backend/platform/validator"

	"yardguard_backend/internal/events"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler      *handler.Handler
	svc          *service.Service
	orchestrator *Orchestrator
	repo         *repository.Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
// The genai client may be nil in environments without an API key; the agent
// implementations fall back to deterministic output in that case.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, storageSvc storage.StorageService, rdb redis.UniversalClient, aiClient *genai.Client, val *validator.Validator, cfg *config.Config, log *logger.Logger) *Module {
	repo := repository.New(pool)
	limiter := ratelimit.New(rdb, cfg, log)
	enqueuer := scheduler.NewClient(cfg)

	visualizer := agent.NewVisualizer(aiClient, cfg, log)
	estimator := agent.NewEstimator(aiClient, cfg, log)

	orchestrator := NewOrchestrator(repo, storageSvc, visualizer, estimator, cfg, log)
	svc := service.New(repo, limiter, enqueuer, storageSvc, eventBus, cfg, log)

	retrySweep := scheduler.NewRetrySweep(repo, enqueuer, cfg, log)
	retentionSweep := scheduler.NewRetentionSweep(repo, storageSvc, cfg, cfg, log)

	h := handler.New(svc, retrySweep, retentionSweep, val)

	return &Module{
		handler:      h,
		svc:          svc,
		orchestrator: orchestrator,
		repo:         repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lead lifecycle service for external use.
func (m *Module) Service() *service.Service {
	return m.svc
}

// Orchestrator returns the enrichment orchestrator for the queue worker.
func (m *Module) Orchestrator() *Orchestrator {
	return m.orchestrator
}

// Repository returns the lead repository for cross-module wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterWebhookRoutes(ctx.Webhooks)
	m.handler.RegisterAdminRoutes(ctx.Reviewer.Group("/leads"))
	m.handler.RegisterJobRoutes(ctx.Reviewer.Group("/jobs"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
