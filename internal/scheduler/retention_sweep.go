package scheduler

import (
	"context"
	"fmt"
	"time"

	"yardguard_backend/internal/leads/repository"
	"yardguard_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultRetentionSweepInterval = 24 * time.Hour

// retentionRepository is the slice of the leads repository the sweep needs.
type retentionRepository interface {
	ListRejectedBefore(ctx context.Context, cutoff time.Time) ([]repository.Lead, error)
	ListPhotosByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Photo, error)
	CountCompletedBefore(ctx context.Context, cutoff time.Time) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// objectRemover removes stored photo objects. Implemented by the MinIO
// storage service.
type objectRemover interface {
	DeleteObject(ctx context.Context, bucket, fileKey string) error
}

// RetentionSweepConfig provides retention settings.
type RetentionSweepConfig interface {
	GetRejectedRetention() time.Duration
	GetCompletedRetention() time.Duration
	GetRetentionSweepInterval() time.Duration
}

// BucketConfig names the photo buckets.
type BucketConfig interface {
	GetMinioBucketRawUploads() string
	GetMinioBucketProcessedImages() string
}

// RetentionSweepResult summarizes one sweep pass.
type RetentionSweepResult struct {
	DeletedRejected int      `json:"deletedRejected"`
	ArchiveEligible int      `json:"archiveEligible"`
	Errors          []string `json:"errors,omitempty"`
}

// RetentionSweep deletes stale REJECTED leads (with their stored photos)
// and reports how many old COMPLETED leads are eligible for archival.
type RetentionSweep struct {
	repo               retentionRepository
	storage            objectRemover
	log                *logger.Logger
	rawBucket          string
	processedBucket    string
	rejectedRetention  time.Duration
	completedRetention time.Duration
	interval           time.Duration
}

func NewRetentionSweep(repo retentionRepository, storage objectRemover, cfg RetentionSweepConfig, buckets BucketConfig, log *logger.Logger) *RetentionSweep {
	interval := cfg.GetRetentionSweepInterval()
	if interval <= 0 {
		interval = defaultRetentionSweepInterval
	}
	rejected := cfg.GetRejectedRetention()
	if rejected <= 0 {
		rejected = 30 * 24 * time.Hour
	}
	completed := cfg.GetCompletedRetention()
	if completed <= 0 {
		completed = 90 * 24 * time.Hour
	}

	return &RetentionSweep{
		repo:               repo,
		storage:            storage,
		log:                log,
		rawBucket:          buckets.GetMinioBucketRawUploads(),
		processedBucket:    buckets.GetMinioBucketProcessedImages(),
		rejectedRetention:  rejected,
		completedRetention: completed,
		interval:           interval,
	}
}

// Run executes sweeps on a ticker until the context is canceled.
func (s *RetentionSweep) Run(ctx context.Context) {
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

func (s *RetentionSweep) logSweep(ctx context.Context) {
	result, err := s.Sweep(ctx)
	if err != nil {
		s.log.Warn("retention sweep failed", "error", err)
		return
	}
	if result.DeletedRejected > 0 || result.ArchiveEligible > 0 || len(result.Errors) > 0 {
		s.log.Info("retention sweep finished",
			"deleted_rejected", result.DeletedRejected,
			"archive_eligible", result.ArchiveEligible,
			"errors", len(result.Errors),
		)
	}
}

// Sweep runs one pass. Storage cleanup failures are reported but do not
// block the row delete; an orphaned object is cheaper than a lead that
// outlives its retention window.
func (s *RetentionSweep) Sweep(ctx context.Context) (RetentionSweepResult, error) {
	now := time.Now()
	result := RetentionSweepResult{}

	rejected, err := s.repo.ListRejectedBefore(ctx, now.Add(-s.rejectedRetention))
	if err != nil {
		return RetentionSweepResult{}, err
	}

	for _, lead := range rejected {
		if err := s.deleteLead(ctx, lead.ID, &result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", lead.ID, err))
		}
	}

	eligible, err := s.repo.CountCompletedBefore(ctx, now.Add(-s.completedRetention))
	if err != nil {
		return result, err
	}
	result.ArchiveEligible = eligible

	return result, nil
}

func (s *RetentionSweep) deleteLead(ctx context.Context, leadID uuid.UUID, result *RetentionSweepResult) error {
	photos, err := s.repo.ListPhotosByLead(ctx, leadID)
	if err != nil {
		return err
	}

	for _, photo := range photos {
		if photo.OriginalPath != nil {
			if err := s.storage.DeleteObject(ctx, s.rawBucket, *photo.OriginalPath); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: delete original: %v", leadID, err))
			}
		}
		if photo.ProcessedPath != nil {
			if err := s.storage.DeleteObject(ctx, s.processedBucket, *photo.ProcessedPath); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: delete processed: %v", leadID, err))
			}
		}
	}

	if err := s.repo.Delete(ctx, leadID); err != nil {
		return err
	}

	result.DeletedRejected++
	return nil
}
