package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LeadEvent is one row of the per-lead audit timeline.
type LeadEvent struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	EventType string
	OldStatus *string
	NewStatus *string
	Actor     string
	Details   map[string]interface{}
	CreatedAt time.Time
}

type RecordEventParams struct {
	LeadID    uuid.UUID
	EventType string
	OldStatus *string
	NewStatus *string
	Actor     string
	Details   map[string]interface{}
}

// RecordEvent appends an entry to the lead's audit timeline.
func (r *Repository) RecordEvent(ctx context.Context, params RecordEventParams) error {
	var details []byte
	if params.Details != nil {
		var err error
		details, err = json.Marshal(params.Details)
		if err != nil {
			return err
		}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_events (lead_id, event_type, old_status, new_status, actor, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, params.LeadID, params.EventType, params.OldStatus, params.NewStatus, params.Actor, details)
	return err
}

// ListEventsByLead returns the audit timeline for a lead, newest first.
func (r *Repository) ListEventsByLead(ctx context.Context, leadID uuid.UUID) ([]LeadEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, event_type, old_status, new_status, actor, details, created_at
		FROM lead_events
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]LeadEvent, 0)
	for rows.Next() {
		var event LeadEvent
		var details []byte
		if err := rows.Scan(
			&event.ID, &event.LeadID, &event.EventType, &event.OldStatus, &event.NewStatus,
			&event.Actor, &details, &event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, err
			}
		}
		items = append(items, event)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}
