// Package transport defines the request and response shapes of the leads
// HTTP API.
package transport

import (
	"time"

	"github.com/google/uuid"

	"yardguard_backend/internal/leads/repository"
)

// PhotoWebhookRequest is the body of the photo-insert webhook.
type PhotoWebhookRequest struct {
	LeadID       uuid.UUID `json:"leadId" validate:"required"`
	OriginalPath string    `json:"originalPath" validate:"required,max=512"`
}

// ApproveRequest carries the optional reviewer estimate override.
type ApproveRequest struct {
	FinalEstimate *string `json:"finalEstimate" validate:"omitempty,max=10000"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// OrchestrateRequest triggers a fresh enrichment run.
type OrchestrateRequest struct {
	Prompt string `json:"prompt" validate:"omitempty,max=2000"`
}

// ListQuery are the query parameters of the lead list endpoint.
type ListQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=NEW PROCESSING NEEDS_REVIEW APPROVED REJECTED COMPLETED FAILED"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" validate:"omitempty,min=0"`
}

// PhotoResponse is a photo row in API form.
type PhotoResponse struct {
	ID            uuid.UUID `json:"id"`
	OriginalPath  *string   `json:"originalPath,omitempty"`
	ProcessedPath *string   `json:"processedPath,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TimelineEventResponse is a lead timeline entry in API form.
type TimelineEventResponse struct {
	ID        uuid.UUID              `json:"id"`
	EventType string                 `json:"eventType"`
	OldStatus *string                `json:"oldStatus,omitempty"`
	NewStatus *string                `json:"newStatus,omitempty"`
	Actor     string                 `json:"actor"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// LeadResponse is a lead in API form.
type LeadResponse struct {
	ID              uuid.UUID `json:"id"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone,omitempty"`
	Address         *string   `json:"address,omitempty"`
	PackageInterest *string   `json:"packageInterest,omitempty"`
	ProjectType     *string   `json:"projectType,omitempty"`
	ApproximateSize *string   `json:"approximateSize,omitempty"`
	Timeline        *string   `json:"timeline,omitempty"`
	MessageContent  *string   `json:"messageContent,omitempty"`
	ReferralSource  *string   `json:"referralSource,omitempty"`
	Status          string    `json:"status"`
	AIEstimate      *string   `json:"aiEstimate,omitempty"`
	FinalEstimate   *string   `json:"finalEstimate,omitempty"`
	RejectionReason *string   `json:"rejectionReason,omitempty"`
	ApprovedBy      *string   `json:"approvedBy,omitempty"`
	RetryCount      int       `json:"retryCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// LeadDetailResponse is a lead with its photos and timeline.
type LeadDetailResponse struct {
	LeadResponse
	Photos   []PhotoResponse         `json:"photos"`
	Timeline []TimelineEventResponse `json:"timeline"`
}

// LeadListResponse is a page of leads.
type LeadListResponse struct {
	Items  []LeadResponse `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ToLeadResponse maps a repository lead to its API form.
func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:              lead.ID,
		FirstName:       lead.FirstName,
		LastName:        lead.LastName,
		Email:           lead.Email,
		Phone:           lead.Phone,
		Address:         lead.Address,
		PackageInterest: lead.PackageInterest,
		ProjectType:     lead.ProjectType,
		ApproximateSize: lead.ApproximateSize,
		Timeline:        lead.Timeline,
		MessageContent:  lead.MessageContent,
		ReferralSource:  lead.ReferralSource,
		Status:          lead.Status,
		AIEstimate:      lead.AIEstimate,
		FinalEstimate:   lead.FinalEstimate,
		RejectionReason: lead.RejectionReason,
		ApprovedBy:      lead.ApprovedBy,
		RetryCount:      lead.RetryCount,
		CreatedAt:       lead.CreatedAt,
		UpdatedAt:       lead.UpdatedAt,
	}
}

// ToPhotoResponse maps a repository photo to its API form.
func ToPhotoResponse(photo repository.Photo) PhotoResponse {
	return PhotoResponse{
		ID:            photo.ID,
		OriginalPath:  photo.OriginalPath,
		ProcessedPath: photo.ProcessedPath,
		CreatedAt:     photo.CreatedAt,
	}
}

// ToTimelineEventResponse maps a lead event to its API form.
func ToTimelineEventResponse(event repository.LeadEvent) TimelineEventResponse {
	return TimelineEventResponse{
		ID:        event.ID,
		EventType: event.EventType,
		OldStatus: event.OldStatus,
		NewStatus: event.NewStatus,
		Actor:     event.Actor,
		Details:   event.Details,
		CreatedAt: event.CreatedAt,
	}
}
