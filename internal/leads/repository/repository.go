package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID              uuid.UUID
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Address         *string
	PackageInterest *string
	ProjectType     *string
	ApproximateSize *string
	Timeline        *string
	MessageContent  *string
	ReferralSource  *string
	Status          string
	AIEstimate      *string
	FinalEstimate   *string
	RejectionReason *string
	ApprovedBy      *string
	RetryCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const leadColumns = `id, first_name, last_name, email, phone, address,
	package_interest, project_type, approximate_size, timeline,
	message_content, referral_source, status, ai_estimate, final_estimate,
	rejection_reason, approved_by, retry_count, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.FirstName, &lead.LastName, &lead.Email, &lead.Phone, &lead.Address,
		&lead.PackageInterest, &lead.ProjectType, &lead.ApproximateSize, &lead.Timeline,
		&lead.MessageContent, &lead.ReferralSource, &lead.Status, &lead.AIEstimate, &lead.FinalEstimate,
		&lead.RejectionReason, &lead.ApprovedBy, &lead.RetryCount, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE id = $1
	`, id))
}

type ListParams struct {
	Status string
	Limit  int
	Offset int
}

// List returns leads matching the optional status filter, newest first,
// along with the total count for pagination.
func (r *Repository) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM leads WHERE ($1 = '' OR status = $1)
	`, params.Status).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, params.Status, limit, params.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return items, total, nil
}

// TransitionStatus conditionally moves a lead from one of the expected
// statuses to the target status. Returns true only when this caller won the
// update; concurrent callers racing on the same lead see false.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($2)
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetEnrichmentResult persists the generated estimate and moves the lead
// from PROCESSING to NEEDS_REVIEW in a single conditional write.
func (r *Repository) SetEnrichmentResult(ctx context.Context, id uuid.UUID, estimate string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET ai_estimate = $2, status = 'NEEDS_REVIEW', updated_at = now()
		WHERE id = $1 AND status = 'PROCESSING'
	`, id, estimate)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed moves a PROCESSING lead to FAILED. Best effort; the lead may
// already have been deleted or transitioned.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = 'FAILED', updated_at = now()
		WHERE id = $1 AND status = 'PROCESSING'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Approve records the approver and optional final estimate while moving
// NEEDS_REVIEW to APPROVED.
func (r *Repository) Approve(ctx context.Context, id uuid.UUID, approvedBy string, finalEstimate *string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = 'APPROVED', approved_by = $2,
			final_estimate = COALESCE($3, final_estimate),
			updated_at = now()
		WHERE id = $1 AND status = 'NEEDS_REVIEW'
	`, id, approvedBy, finalEstimate)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Reject records the rejection reason while moving NEEDS_REVIEW to REJECTED.
func (r *Repository) Reject(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = 'REJECTED', rejection_reason = $2, updated_at = now()
		WHERE id = $1 AND status = 'NEEDS_REVIEW'
	`, id, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListFailedForRetry returns at most limit FAILED leads still under the
// retry cap, oldest updated_at first so starved leads go first.
func (r *Repository) ListFailedForRetry(ctx context.Context, maxAttempts, limit int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = 'FAILED' AND retry_count < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// MarkRetrying bumps the retry counter and claims the lead back into
// PROCESSING. Conditional on FAILED so a concurrent sweep cannot double-claim.
func (r *Repository) MarkRetrying(ctx context.Context, id uuid.UUID, newCount int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = 'PROCESSING', retry_count = $2, updated_at = now()
		WHERE id = $1 AND status = 'FAILED'
	`, id, newCount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkMaxedOut routes a lead that exhausted its retries to human review
// with the static fallback estimate attached.
func (r *Repository) MarkMaxedOut(ctx context.Context, id uuid.UUID, newCount int, fallbackEstimate string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = 'NEEDS_REVIEW', retry_count = $2, ai_estimate = $3, updated_at = now()
		WHERE id = $1 AND status = 'FAILED'
	`, id, newCount, fallbackEstimate)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListRejectedBefore returns REJECTED leads whose last update is older than
// the cutoff. Used by the retention sweep before deleting rows.
func (r *Repository) ListRejectedBefore(ctx context.Context, cutoff time.Time) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = 'REJECTED' AND updated_at < $1
		ORDER BY updated_at ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// CountCompletedBefore counts COMPLETED leads older than the cutoff.
// They are reported as archive-eligible, not deleted.
func (r *Repository) CountCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM leads
		WHERE status = 'COMPLETED' AND updated_at < $1
	`, cutoff).Scan(&count)
	return count, err
}

// Delete removes a lead. Photo and event rows cascade via FK.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
