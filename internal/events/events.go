// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"yardguard_backend/platform/events"
	"yardguard_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// InMemoryBus is the single-process bus implementation.
type InMemoryBus = events.InMemoryBus

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// LeadEnrichmentTriggered is published when a photo upload wins the claim
// and the enrichment pipeline is queued for a lead.
type LeadEnrichmentTriggered struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	PhotoID uuid.UUID `json:"photoId"`
}

func (e LeadEnrichmentTriggered) EventName() string { return "leads.enrichment.triggered" }

// LeadApproved is published when a reviewer approves a lead. The notification
// subscriber delivers the proposal email and completes the lead on success.
type LeadApproved struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	ApprovedBy string    `json:"approvedBy"`
	Resend     bool      `json:"resend,omitempty"`
}

func (e LeadApproved) EventName() string { return "leads.approved" }

// LeadRejected is published when a reviewer rejects a lead.
type LeadRejected struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	RejectedBy string    `json:"rejectedBy"`
	Reason     string    `json:"reason"`
}

func (e LeadRejected) EventName() string { return "leads.rejected" }
