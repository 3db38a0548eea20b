package leads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"yardguard_backend/internal/adapters/storage"
	"yardguard_backend/internal/leads/agent"
	"yardguard_backend/internal/leads/domain"
	"yardguard_backend/internal/leads/repository"
	"yardguard_backend/platform/logger"
	"yardguard_backend/platform/phone"
	"yardguard_backend/platform/sanitize"
)

// orchestratorRepository is the slice of the leads repository the
// enrichment run needs.
type orchestratorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	ListPhotosByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Photo, error)
	SetProcessedPath(ctx context.Context, id uuid.UUID, path string, force bool) (bool, error)
	SetEnrichmentResult(ctx context.Context, id uuid.UUID, estimate string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
	RecordEvent(ctx context.Context, params repository.RecordEventParams) error
}

// photoStore is the slice of the storage service the enrichment run needs.
type photoStore interface {
	DownloadBytes(ctx context.Context, bucket, fileKey string) ([]byte, error)
	UploadObject(ctx context.Context, bucket, fileKey, contentType string, reader io.Reader, size int64) error
	ValidateContentType(contentType string) error
	ValidateFileSize(sizeBytes int64) error
}

// OrchestratorBuckets names the photo buckets for the enrichment run.
type OrchestratorBuckets interface {
	GetMinioBucketRawUploads() string
	GetMinioBucketProcessedImages() string
}

// Orchestrator runs the enrichment pipeline for a single lead: transform
// each yard photo, then generate the preliminary estimate. Invoked from
// the queue worker.
type Orchestrator struct {
	repo        orchestratorRepository
	store       photoStore
	transformer agent.ImageTransformer
	estimator   agent.EstimateGenerator
	log         *logger.Logger

	rawBucket       string
	processedBucket string

	// Idempotency protection: tracks leads with an active enrichment run
	// in this process.
	activeRuns map[string]bool
	runsMu     sync.Mutex
}

func NewOrchestrator(repo orchestratorRepository, store photoStore, transformer agent.ImageTransformer, estimator agent.EstimateGenerator, buckets OrchestratorBuckets, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		repo:            repo,
		store:           store,
		transformer:     transformer,
		estimator:       estimator,
		log:             log,
		rawBucket:       buckets.GetMinioBucketRawUploads(),
		processedBucket: buckets.GetMinioBucketProcessedImages(),
		activeRuns:      make(map[string]bool),
	}
}

// markRunning attempts to mark an enrichment run as active. Returns true if
// successfully marked, false if already running.
func (o *Orchestrator) markRunning(leadID uuid.UUID) bool {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()

	key := leadID.String()
	if o.activeRuns[key] {
		return false
	}
	o.activeRuns[key] = true
	return true
}

// markComplete removes the active run marker.
func (o *Orchestrator) markComplete(leadID uuid.UUID) {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()

	delete(o.activeRuns, leadID.String())
}

// Run executes one enrichment pass. It always returns nil for per-lead
// failures so the queue does not schedule its own retries; FAILED leads are
// picked up by the retry sweep instead.
func (o *Orchestrator) Run(ctx context.Context, leadID uuid.UUID, force bool, prompt string) error {
	if !o.markRunning(leadID) {
		o.log.Info("orchestrator: enrichment already running for lead, skipping", "leadId", leadID)
		return nil
	}
	defer o.markComplete(leadID)

	lead, err := o.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			o.log.Warn("orchestrator: lead no longer exists, dropping run", "leadId", leadID)
			return nil
		}
		// MarkFailed only fires on a PROCESSING lead, so the placeholder
		// status is what the event will have seen.
		o.failLead(ctx, repository.Lead{ID: leadID, Status: domain.LeadStatusProcessing},
			fmt.Sprintf("load lead: %v", err))
		return nil
	}

	if lead.Status != domain.LeadStatusProcessing {
		o.log.Info("orchestrator: lead not in PROCESSING, skipping run",
			"leadId", leadID, "status", lead.Status)
		return nil
	}

	photos, err := o.repo.ListPhotosByLead(ctx, leadID)
	if err != nil {
		o.failLead(ctx, lead, fmt.Sprintf("list photos: %v", err))
		return nil
	}
	if len(photos) == 0 {
		// No photos to transform; the estimate alone still moves the lead
		// to review.
		o.log.Warn("orchestrator: no photos found for lead", "leadId", leadID)
	}

	enhancement := agent.EnhancementFor(deref(lead.PackageInterest), prompt)

	processed := 0
	failed := 0
	for _, photo := range photos {
		if photo.ProcessedPath != nil && !force {
			o.log.Info("orchestrator: photo already processed, skipping",
				"leadId", leadID, "photoId", photo.ID)
			processed++
			continue
		}

		if err := o.transformPhoto(ctx, lead, photo, enhancement, force); err != nil {
			o.log.Warn("orchestrator: photo transformation failed",
				"leadId", leadID, "photoId", photo.ID, "error", err)
			failed++
			continue
		}
		processed++
	}

	estimate := o.estimator.Generate(ctx, leadContextOf(lead))

	updated, err := o.repo.SetEnrichmentResult(ctx, leadID, estimate)
	if err != nil {
		o.failLead(ctx, lead, fmt.Sprintf("persist estimate: %v", err))
		return nil
	}
	if !updated {
		// Lost the race to an admin action or another worker.
		o.log.Warn("orchestrator: lead left PROCESSING during run, result discarded", "leadId", leadID)
		return nil
	}

	o.recordTransition(ctx, lead, "enrichment_completed", domain.LeadStatusNeedsReview, map[string]interface{}{
		"photosProcessed": processed,
		"photosFailed":    failed,
	})
	o.log.Info("orchestrator: enrichment complete",
		"leadId", leadID, "processed", processed, "failed", failed)
	return nil
}

func (o *Orchestrator) transformPhoto(ctx context.Context, lead repository.Lead, photo repository.Photo, enhancement string, force bool) error {
	if photo.OriginalPath == nil {
		return fmt.Errorf("photo %s has no original path", photo.ID)
	}

	data, err := o.store.DownloadBytes(ctx, o.rawBucket, *photo.OriginalPath)
	if err != nil {
		return fmt.Errorf("download original: %w", err)
	}

	if meta := storage.ExtractMetadata(data); meta != nil {
		o.log.Info("orchestrator: photo metadata",
			"photoId", photo.ID, "camera", meta.CameraMake+" "+meta.CameraModel, "hasGps", meta.HasGPS)
	}

	mimeType := storage.ContentTypeForKey(*photo.OriginalPath)
	if err := o.store.ValidateContentType(mimeType); err != nil {
		return fmt.Errorf("original rejected: %w", err)
	}
	if err := o.store.ValidateFileSize(int64(len(data))); err != nil {
		return fmt.Errorf("original rejected: %w", err)
	}
	result := o.transformer.Transform(ctx, data, mimeType, enhancement)
	if !result.Success {
		return fmt.Errorf("transform: %s", result.Err)
	}

	fileKey := fmt.Sprintf("processed/%s/%s.png", lead.ID, photo.ID)
	if err := o.store.UploadObject(ctx, o.processedBucket, fileKey, result.MIMEType,
		bytes.NewReader(result.Image), int64(len(result.Image))); err != nil {
		return fmt.Errorf("upload processed: %w", err)
	}

	if _, err := o.repo.SetProcessedPath(ctx, photo.ID, fileKey, force); err != nil {
		return fmt.Errorf("record processed path: %w", err)
	}
	return nil
}

func (o *Orchestrator) failLead(ctx context.Context, lead repository.Lead, reason string) {
	o.log.Error("orchestrator: enrichment failed", "leadId", lead.ID, "reason", reason)

	updated, err := o.repo.MarkFailed(ctx, lead.ID)
	if err != nil {
		o.log.Error("orchestrator: failed to mark lead FAILED", "leadId", lead.ID, "error", err)
		return
	}
	if !updated {
		return
	}

	o.recordTransition(ctx, lead, "enrichment_failed", domain.LeadStatusFailed, map[string]interface{}{
		"reason": reason,
	})
}

func (o *Orchestrator) recordTransition(ctx context.Context, lead repository.Lead, eventType, newStatus string, details map[string]interface{}) {
	oldStatus := lead.Status
	if err := o.repo.RecordEvent(ctx, repository.RecordEventParams{
		LeadID:    lead.ID,
		EventType: eventType,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
		Actor:     "orchestrator",
		Details:   details,
	}); err != nil {
		o.log.Warn("orchestrator: failed to record event", "leadId", lead.ID, "error", err)
	}
}

// leadContextOf builds the estimator context, stripping any markup from the
// customer-supplied free-text fields.
func leadContextOf(lead repository.Lead) agent.LeadContext {
	return agent.LeadContext{
		FirstName:       sanitize.Text(lead.FirstName),
		LastName:        sanitize.Text(lead.LastName),
		Email:           lead.Email,
		Phone:           phone.NormalizeE164(lead.Phone),
		Address:         sanitize.Text(deref(lead.Address)),
		PackageInterest: deref(lead.PackageInterest),
		ProjectType:     deref(lead.ProjectType),
		ApproximateSize: sanitize.Text(deref(lead.ApproximateSize)),
		Timeline:        sanitize.Text(deref(lead.Timeline)),
		MessageContent:  sanitize.Text(deref(lead.MessageContent)),
		ReferralSource:  sanitize.Text(deref(lead.ReferralSource)),
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
