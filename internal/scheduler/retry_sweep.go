package scheduler

import (
	"context"
	"fmt"
	"time"

	"yardguard_backend/internal/leads/agent"
	"yardguard_backend/internal/leads/repository"
	"yardguard_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultRetrySweepInterval = 15 * time.Minute

// retryRepository is the slice of the leads repository the sweep needs.
type retryRepository interface {
	ListFailedForRetry(ctx context.Context, maxAttempts, limit int) ([]repository.Lead, error)
	MarkRetrying(ctx context.Context, id uuid.UUID, newCount int) (bool, error)
	MarkMaxedOut(ctx context.Context, id uuid.UUID, newCount int, fallbackEstimate string) (bool, error)
	RecordEvent(ctx context.Context, params repository.RecordEventParams) error
}

// orchestrationEnqueuer queues an enrichment run. Implemented by Client.
type orchestrationEnqueuer interface {
	EnqueueOrchestration(ctx context.Context, leadID string, force bool, prompt string) error
}

// RetrySweepConfig provides retry sweep settings.
type RetrySweepConfig interface {
	GetRetryBatchSize() int
	GetMaxRetryAttempts() int
	GetRetrySweepInterval() time.Duration
}

// RetrySweepResult summarizes one sweep pass.
type RetrySweepResult struct {
	Retried  int      `json:"retried"`
	MaxedOut int      `json:"maxedOut"`
	Errors   []string `json:"errors,omitempty"`
}

// RetrySweep periodically picks up FAILED leads and either requeues them
// for enrichment or, once the retry budget is spent, routes them to human
// review with the static fallback estimate.
type RetrySweep struct {
	repo        retryRepository
	enqueuer    orchestrationEnqueuer
	log         *logger.Logger
	batchSize   int
	maxAttempts int
	interval    time.Duration
}

func NewRetrySweep(repo retryRepository, enqueuer orchestrationEnqueuer, cfg RetrySweepConfig, log *logger.Logger) *RetrySweep {
	interval := cfg.GetRetrySweepInterval()
	if interval <= 0 {
		interval = defaultRetrySweepInterval
	}
	batchSize := cfg.GetRetryBatchSize()
	if batchSize <= 0 {
		batchSize = 10
	}
	maxAttempts := cfg.GetMaxRetryAttempts()
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &RetrySweep{
		repo:        repo,
		enqueuer:    enqueuer,
		log:         log,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		interval:    interval,
	}
}

// Run executes sweeps on a ticker until the context is canceled.
func (s *RetrySweep) Run(ctx context.Context) {
	if s == nil || s.repo == nil {
		return
	}

	s.logSweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logSweep(ctx)
		}
	}
}

func (s *RetrySweep) logSweep(ctx context.Context) {
	result, err := s.Sweep(ctx)
	if err != nil {
		s.log.Warn("retry sweep failed", "error", err)
		return
	}
	if result.Retried > 0 || result.MaxedOut > 0 || len(result.Errors) > 0 {
		s.log.Info("retry sweep finished",
			"retried", result.Retried,
			"maxed_out", result.MaxedOut,
			"errors", len(result.Errors),
		)
	}
}

// Sweep runs one pass. Per-lead failures are collected, not fatal, so one
// bad lead cannot starve the rest of the batch.
func (s *RetrySweep) Sweep(ctx context.Context) (RetrySweepResult, error) {
	leads, err := s.repo.ListFailedForRetry(ctx, s.maxAttempts, s.batchSize)
	if err != nil {
		return RetrySweepResult{}, err
	}

	result := RetrySweepResult{}
	for _, lead := range leads {
		if err := s.sweepLead(ctx, lead, &result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", lead.ID, err))
		}
	}

	return result, nil
}

func (s *RetrySweep) sweepLead(ctx context.Context, lead repository.Lead, result *RetrySweepResult) error {
	newCount := lead.RetryCount + 1

	if newCount >= s.maxAttempts {
		fallback := agent.FallbackEstimate(leadContextOf(lead))
		updated, err := s.repo.MarkMaxedOut(ctx, lead.ID, newCount, fallback)
		if err != nil {
			return err
		}
		if !updated {
			// Lost the race to another sweep or an admin action.
			return nil
		}

		s.recordTransition(ctx, lead, "retry_exhausted", "NEEDS_REVIEW", newCount)
		result.MaxedOut++
		return nil
	}

	updated, err := s.repo.MarkRetrying(ctx, lead.ID, newCount)
	if err != nil {
		return err
	}
	if !updated {
		return nil
	}

	if err := s.enqueuer.EnqueueOrchestration(ctx, lead.ID.String(), false, ""); err != nil {
		return fmt.Errorf("enqueue orchestration: %w", err)
	}

	s.recordTransition(ctx, lead, "retry_scheduled", "PROCESSING", newCount)
	result.Retried++
	return nil
}

func (s *RetrySweep) recordTransition(ctx context.Context, lead repository.Lead, eventType, newStatus string, newCount int) {
	oldStatus := lead.Status
	if err := s.repo.RecordEvent(ctx, repository.RecordEventParams{
		LeadID:    lead.ID,
		EventType: eventType,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
		Actor:     "retry-sweep",
		Details:   map[string]interface{}{"retryCount": newCount},
	}); err != nil {
		s.log.Warn("failed to record retry event", "lead_id", lead.ID, "error", err)
	}
}

func leadContextOf(lead repository.Lead) agent.LeadContext {
	return agent.LeadContext{
		FirstName:       lead.FirstName,
		LastName:        lead.LastName,
		Email:           lead.Email,
		Phone:           lead.Phone,
		Address:         deref(lead.Address),
		PackageInterest: deref(lead.PackageInterest),
		ProjectType:     deref(lead.ProjectType),
		ApproximateSize: deref(lead.ApproximateSize),
		Timeline:        deref(lead.Timeline),
		MessageContent:  deref(lead.MessageContent),
		ReferralSource:  deref(lead.ReferralSource),
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
