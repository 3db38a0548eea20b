// Package notification provides event handlers for customer-facing
// notifications in response to domain events. This module subscribes to
// events and inverts the dependency: the leads module does not need to know
// about email providers or templates.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"yardguard_backend/internal/adapters/storage"
	"yardguard_backend/internal/email"
	"yardguard_backend/internal/events"
	"yardguard_backend/internal/leads/domain"
	"yardguard_backend/internal/leads/repository"
	"yardguard_backend/platform/logger"
)

// notificationRepository is the slice of the leads repository the module needs.
type notificationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	ListPhotosByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Photo, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error)
	RecordEvent(ctx context.Context, params repository.RecordEventParams) error
}

// urlSigner produces presigned photo download URLs for the email.
type urlSigner interface {
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string, ttl time.Duration) (*storage.PresignedURL, error)
}

// Config provides notification settings.
type Config interface {
	GetAppBaseURL() string
	GetPresignTTL() time.Duration
	GetMinioBucketRawUploads() string
	GetMinioBucketProcessedImages() string
}

// Module handles all notification-related event subscriptions.
type Module struct {
	sender email.Sender
	repo   notificationRepository
	signer urlSigner
	log    *logger.Logger

	baseURL         string
	presignTTL      time.Duration
	rawBucket       string
	processedBucket string
}

func NewModule(sender email.Sender, repo notificationRepository, signer urlSigner, cfg Config, log *logger.Logger) *Module {
	ttl := cfg.GetPresignTTL()
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Module{
		sender:          sender,
		repo:            repo,
		signer:          signer,
		log:             log,
		baseURL:         cfg.GetAppBaseURL(),
		presignTTL:      ttl,
		rawBucket:       cfg.GetMinioBucketRawUploads(),
		processedBucket: cfg.GetMinioBucketProcessedImages(),
	}
}

// RegisterHandlers subscribes to the domain events this module reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadApproved{}.EventName(), m)
	bus.Subscribe(events.LeadRejected{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadApproved:
		return m.handleLeadApproved(ctx, e)
	case events.LeadRejected:
		m.log.Info("lead rejected, no customer notification sent",
			"leadId", e.LeadID, "rejectedBy", e.RejectedBy, "reason", e.Reason)
		return nil
	default:
		return nil
	}
}

// handleLeadApproved delivers the proposal email. A successful first send
// completes the lead; a resend leaves the status alone.
func (m *Module) handleLeadApproved(ctx context.Context, evt events.LeadApproved) error {
	lead, err := m.repo.GetByID(ctx, evt.LeadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.log.Warn("approved lead vanished before notification", "leadId", evt.LeadID)
			return nil
		}
		return err
	}

	if lead.Status != domain.LeadStatusApproved && lead.Status != domain.LeadStatusCompleted {
		m.log.Warn("lead left the approved state before notification, skipping send",
			"leadId", evt.LeadID, "status", lead.Status)
		return nil
	}

	data, err := m.buildProposal(ctx, lead)
	if err != nil {
		return fmt.Errorf("build proposal for lead %s: %w", lead.ID, err)
	}

	attachments := m.qrAttachment(data.ProposalURL)
	if err := m.sender.SendProposalEmail(ctx, lead.Email, data, attachments...); err != nil {
		m.log.Error("proposal email failed", "leadId", lead.ID, "error", err)
		return err
	}

	if evt.Resend {
		m.log.Info("proposal email resent", "leadId", lead.ID)
		return nil
	}

	completed, err := m.repo.TransitionStatus(ctx, lead.ID,
		[]string{domain.LeadStatusApproved}, domain.LeadStatusCompleted)
	if err != nil {
		return err
	}
	if completed {
		old := domain.LeadStatusApproved
		newStatus := domain.LeadStatusCompleted
		if err := m.repo.RecordEvent(ctx, repository.RecordEventParams{
			LeadID:    lead.ID,
			EventType: "proposal_sent",
			OldStatus: &old,
			NewStatus: &newStatus,
			Actor:     "notifier",
		}); err != nil {
			m.log.Warn("failed to record notification event", "leadId", lead.ID, "error", err)
		}
	}

	m.log.Info("proposal email delivered", "leadId", lead.ID, "completed", completed)
	return nil
}

func (m *Module) buildProposal(ctx context.Context, lead repository.Lead) (email.ProposalEmailData, error) {
	estimate := ""
	switch {
	case lead.FinalEstimate != nil && *lead.FinalEstimate != "":
		estimate = *lead.FinalEstimate
	case lead.AIEstimate != nil:
		estimate = *lead.AIEstimate
	}

	photos, err := m.repo.ListPhotosByLead(ctx, lead.ID)
	if err != nil {
		return email.ProposalEmailData{}, err
	}

	var pairs []email.ProposalPhoto
	for _, photo := range photos {
		if photo.OriginalPath == nil || photo.ProcessedPath == nil {
			continue
		}
		before, err := m.signer.GenerateDownloadURL(ctx, m.rawBucket, *photo.OriginalPath, m.presignTTL)
		if err != nil {
			m.log.Warn("failed to presign original photo", "photoId", photo.ID, "error", err)
			continue
		}
		after, err := m.signer.GenerateDownloadURL(ctx, m.processedBucket, *photo.ProcessedPath, m.presignTTL)
		if err != nil {
			m.log.Warn("failed to presign processed photo", "photoId", photo.ID, "error", err)
			continue
		}
		pairs = append(pairs, email.ProposalPhoto{BeforeURL: before.URL, AfterURL: after.URL})
	}

	return email.ProposalEmailData{
		ConsumerName: lead.FirstName,
		EstimateText: estimate,
		Photos:       pairs,
		ProposalURL:  fmt.Sprintf("%s/proposals/%s", m.baseURL, lead.ID),
	}, nil
}

// qrAttachment renders a QR code for the proposal page. A render failure
// only drops the attachment, never the email.
func (m *Module) qrAttachment(proposalURL string) []email.Attachment {
	if proposalURL == "" {
		return nil
	}
	png, err := qrcode.Encode(proposalURL, qrcode.Medium, 256)
	if err != nil {
		m.log.Warn("failed to render proposal QR code", "error", err)
		return nil
	}
	return []email.Attachment{{FileName: "proposal-qr.png", Content: png}}
}
