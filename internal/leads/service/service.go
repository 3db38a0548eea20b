// Package service implements the synchronous lead operations: the ingestion
// trigger and the reviewer actions.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"yardguard_backend/internal/events"
	"yardguard_backend/internal/leads/domain"
	"yardguard_backend/internal/leads/repository"
	"yardguard_backend/internal/ratelimit"
	"yardguard_backend/platform/apperr"
	"yardguard_backend/platform/logger"
)

// serviceRepository is the slice of the leads repository the service needs.
type serviceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.Lead, int, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error)
	Approve(ctx context.Context, id uuid.UUID, approvedBy string, finalEstimate *string) (bool, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CreatePhoto(ctx context.Context, leadID uuid.UUID, originalPath string) (repository.Photo, error)
	ListPhotosByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Photo, error)
	ListEventsByLead(ctx context.Context, leadID uuid.UUID) ([]repository.LeadEvent, error)
	RecordEvent(ctx context.Context, params repository.RecordEventParams) error
}

// rateLimiter guards ingestion per customer identity.
type rateLimiter interface {
	Enforce(ctx context.Context, identity string) error
}

// orchestrationEnqueuer schedules an enrichment run on the task queue.
// Implemented by scheduler.Client.
type orchestrationEnqueuer interface {
	EnqueueOrchestration(ctx context.Context, leadID string, force bool, prompt string) error
}

// objectRemover removes stored photo objects on lead deletion.
type objectRemover interface {
	DeleteObject(ctx context.Context, bucket, fileKey string) error
}

// Service implements the synchronous lead operations: the photo-insert
// trigger and the reviewer actions. Enrichment itself runs asynchronously
// in the Orchestrator.
type Service struct {
	repo     serviceRepository
	limiter  rateLimiter
	enqueuer orchestrationEnqueuer
	storage  objectRemover
	bus      events.Bus
	log      *logger.Logger

	rawBucket       string
	processedBucket string
}

// BucketConfig names the photo buckets.
type BucketConfig interface {
	GetMinioBucketRawUploads() string
	GetMinioBucketProcessedImages() string
}

func New(repo serviceRepository, limiter rateLimiter, enqueuer orchestrationEnqueuer, storage objectRemover, bus events.Bus, buckets BucketConfig, log *logger.Logger) *Service {
	return &Service{
		repo:            repo,
		limiter:         limiter,
		enqueuer:        enqueuer,
		storage:         storage,
		bus:             bus,
		log:             log,
		rawBucket:       buckets.GetMinioBucketRawUploads(),
		processedBucket: buckets.GetMinioBucketProcessedImages(),
	}
}

// triggerStatuses are the lead statuses that accept new photo events.
var triggerStatuses = map[string]bool{
	domain.LeadStatusNew:         true,
	domain.LeadStatusProcessing:  true,
	domain.LeadStatusNeedsReview: true,
}

// TriggerResult reports what the photo-insert trigger did.
type TriggerResult struct {
	PhotoID    uuid.UUID `json:"photoId"`
	LeadStatus string    `json:"leadStatus"`
	Triggered  bool      `json:"triggered"`
	Skipped    string    `json:"skipped,omitempty"`
}

// OnPhotoInserted is the ingestion trigger. It records the photo, enforces
// the per-customer rate limit, and claims the lead for enrichment with a
// conditional status update. Only the caller that wins the claim enqueues
// an orchestration run; a lead already in PROCESSING absorbs the event.
// The enrichment itself is asynchronous; this never waits for it.
func (s *Service) OnPhotoInserted(ctx context.Context, leadID uuid.UUID, originalPath string) (TriggerResult, error) {
	if strings.TrimSpace(originalPath) == "" {
		return TriggerResult{}, apperr.Validation("originalPath is required")
	}

	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TriggerResult{}, apperr.NotFound("lead not found")
		}
		return TriggerResult{}, err
	}

	if domain.IsTerminal(lead.Status) || !triggerStatuses[lead.Status] {
		s.log.Info("photo event ignored, lead not accepting photos", "leadId", leadID, "status", lead.Status)
		return TriggerResult{LeadStatus: lead.Status, Skipped: "lead is not accepting new photos"}, nil
	}

	if err := s.limiter.Enforce(ctx, ratelimit.NormalizeKey(lead.Email)); err != nil {
		// Dropped, not queued. The customer can re-upload once the window
		// slides; the lead itself is left untouched.
		return TriggerResult{}, err
	}

	photo, err := s.repo.CreatePhoto(ctx, leadID, originalPath)
	if err != nil {
		return TriggerResult{}, err
	}

	claimed, err := s.repo.TransitionStatus(ctx, leadID,
		[]string{domain.LeadStatusNew, domain.LeadStatusNeedsReview}, domain.LeadStatusProcessing)
	if err != nil {
		return TriggerResult{}, err
	}
	if !claimed {
		// Already PROCESSING: the in-flight run picks the new photo up, or
		// the next sweep does. Either way this event is done.
		s.log.Info("lead already claimed, photo recorded without new run", "leadId", leadID)
		return TriggerResult{PhotoID: photo.ID, LeadStatus: domain.LeadStatusProcessing}, nil
	}

	if err := s.enqueuer.EnqueueOrchestration(ctx, leadID.String(), false, ""); err != nil {
		// The claim stands; the retry sweep will not see this lead (it is
		// PROCESSING, not FAILED), so surface the failure to the caller.
		return TriggerResult{}, apperr.External("task queue", err)
	}

	s.recordStatusChange(ctx, lead, domain.LeadStatusProcessing, "ingestion", "photo_inserted", nil)
	s.bus.Publish(ctx, events.LeadEnrichmentTriggered{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		PhotoID:   photo.ID,
	})

	return TriggerResult{PhotoID: photo.ID, LeadStatus: domain.LeadStatusProcessing, Triggered: true}, nil
}

// Approve moves a NEEDS_REVIEW lead to APPROVED and fires the notification
// pipeline. The final estimate override is optional; absent, the customer
// receives the generated one.
func (s *Service) Approve(ctx context.Context, leadID uuid.UUID, approvedBy string, finalEstimate *string) error {
	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(lead.Status, domain.LeadStatusApproved) {
		return apperr.Conflict(fmt.Sprintf("lead is %s, only NEEDS_REVIEW leads can be approved", lead.Status))
	}

	updated, err := s.repo.Approve(ctx, leadID, approvedBy, finalEstimate)
	if err != nil {
		return err
	}
	if !updated {
		return apperr.Conflict(fmt.Sprintf("lead is %s, only NEEDS_REVIEW leads can be approved", lead.Status))
	}

	s.recordStatusChange(ctx, lead, domain.LeadStatusApproved, approvedBy, "approved", nil)
	s.bus.Publish(ctx, events.LeadApproved{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     leadID,
		ApprovedBy: approvedBy,
	})
	return nil
}

// Reject moves a NEEDS_REVIEW lead to REJECTED. A reason is mandatory.
func (s *Service) Reject(ctx context.Context, leadID uuid.UUID, rejectedBy, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return apperr.Validation("a rejection reason is required")
	}

	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(lead.Status, domain.LeadStatusRejected) {
		return apperr.Conflict(fmt.Sprintf("lead is %s, only NEEDS_REVIEW leads can be rejected", lead.Status))
	}

	updated, err := s.repo.Reject(ctx, leadID, reason)
	if err != nil {
		return err
	}
	if !updated {
		return apperr.Conflict(fmt.Sprintf("lead is %s, only NEEDS_REVIEW leads can be rejected", lead.Status))
	}

	s.recordStatusChange(ctx, lead, domain.LeadStatusRejected, rejectedBy, "rejected",
		map[string]interface{}{"reason": reason})
	s.bus.Publish(ctx, events.LeadRejected{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     leadID,
		RejectedBy: rejectedBy,
		Reason:     reason,
	})
	return nil
}

// Regenerate reclaims a reviewed lead for another enrichment run, optionally
// with a custom visualizer prompt. Force makes the orchestrator redo photos
// that already have a processed image.
func (s *Service) Regenerate(ctx context.Context, leadID uuid.UUID, actor, prompt string) error {
	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(lead.Status, domain.LeadStatusProcessing) {
		return apperr.Conflict(fmt.Sprintf("lead is %s and cannot be reprocessed right now", lead.Status))
	}

	claimed, err := s.repo.TransitionStatus(ctx, leadID,
		[]string{domain.LeadStatusNeedsReview, domain.LeadStatusApproved, domain.LeadStatusFailed},
		domain.LeadStatusProcessing)
	if err != nil {
		return err
	}
	if !claimed {
		return apperr.Conflict(fmt.Sprintf("lead is %s and cannot be reprocessed right now", lead.Status))
	}

	if err := s.enqueuer.EnqueueOrchestration(ctx, leadID.String(), true, prompt); err != nil {
		return apperr.External("task queue", err)
	}

	details := map[string]interface{}{}
	if prompt != "" {
		details["prompt"] = prompt
	}
	s.recordStatusChange(ctx, lead, domain.LeadStatusProcessing, actor, "regenerate_requested", details)
	return nil
}

// Resend re-fires the proposal notification for an already approved or
// completed lead without touching its status.
func (s *Service) Resend(ctx context.Context, leadID uuid.UUID, actor string) error {
	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return err
	}

	if lead.Status != domain.LeadStatusApproved && lead.Status != domain.LeadStatusCompleted {
		return apperr.Conflict(fmt.Sprintf("lead is %s, only APPROVED or COMPLETED proposals can be resent", lead.Status))
	}

	approvedBy := actor
	if lead.ApprovedBy != nil {
		approvedBy = *lead.ApprovedBy
	}
	s.bus.Publish(ctx, events.LeadApproved{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     leadID,
		ApprovedBy: approvedBy,
		Resend:     true,
	})
	return nil
}

// Delete removes a lead, its photo rows (FK cascade) and their stored
// objects. Used by admins; the retention sweep does the same for stale
// REJECTED leads on a timer.
func (s *Service) Delete(ctx context.Context, leadID uuid.UUID) error {
	if _, err := s.getLead(ctx, leadID); err != nil {
		return err
	}

	photos, err := s.repo.ListPhotosByLead(ctx, leadID)
	if err != nil {
		return err
	}
	for _, photo := range photos {
		if photo.OriginalPath != nil {
			if err := s.storage.DeleteObject(ctx, s.rawBucket, *photo.OriginalPath); err != nil {
				s.log.Warn("failed to delete original object", "leadId", leadID, "error", err)
			}
		}
		if photo.ProcessedPath != nil {
			if err := s.storage.DeleteObject(ctx, s.processedBucket, *photo.ProcessedPath); err != nil {
				s.log.Warn("failed to delete processed object", "leadId", leadID, "error", err)
			}
		}
	}

	return s.repo.Delete(ctx, leadID)
}

// LeadDetail is a lead with its photos and timeline.
type LeadDetail struct {
	Lead   repository.Lead
	Photos []repository.Photo
	Events []repository.LeadEvent
}

// Get returns a lead with its photos and timeline for the reviewer UI.
func (s *Service) Get(ctx context.Context, leadID uuid.UUID) (LeadDetail, error) {
	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return LeadDetail{}, err
	}

	photos, err := s.repo.ListPhotosByLead(ctx, leadID)
	if err != nil {
		return LeadDetail{}, err
	}
	timeline, err := s.repo.ListEventsByLead(ctx, leadID)
	if err != nil {
		return LeadDetail{}, err
	}

	return LeadDetail{Lead: lead, Photos: photos, Events: timeline}, nil
}

// List returns a page of leads, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]repository.Lead, int, error) {
	if status != "" && !domain.IsKnownStatus(status) {
		return nil, 0, apperr.Validation(fmt.Sprintf("unknown status %q", status))
	}
	return s.repo.List(ctx, repository.ListParams{Status: status, Limit: limit, Offset: offset})
}

func (s *Service) getLead(ctx context.Context, leadID uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found")
		}
		return repository.Lead{}, err
	}
	return lead, nil
}

func (s *Service) recordStatusChange(ctx context.Context, lead repository.Lead, newStatus, actor, eventType string, details map[string]interface{}) {
	oldStatus := lead.Status
	if err := s.repo.RecordEvent(ctx, repository.RecordEventParams{
		LeadID:    lead.ID,
		EventType: eventType,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
		Actor:     actor,
		Details:   details,
	}); err != nil {
		s.log.Warn("failed to record lead event", "leadId", lead.ID, "error", err)
	}
}
