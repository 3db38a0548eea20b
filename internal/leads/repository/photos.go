package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrPhotoNotFound = errors.New("photo not found")

type Photo struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	OriginalPath  *string
	ProcessedPath *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const photoColumns = `id, lead_id, original_path, processed_path, created_at, updated_at`

func scanPhoto(row pgx.Row) (Photo, error) {
	var photo Photo
	err := row.Scan(
		&photo.ID, &photo.LeadID, &photo.OriginalPath, &photo.ProcessedPath,
		&photo.CreatedAt, &photo.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Photo{}, ErrPhotoNotFound
	}
	return photo, err
}

// CreatePhoto inserts a photo row for a lead.
func (r *Repository) CreatePhoto(ctx context.Context, leadID uuid.UUID, originalPath string) (Photo, error) {
	return scanPhoto(r.pool.QueryRow(ctx, `
		INSERT INTO photos (lead_id, original_path)
		VALUES ($1, $2)
		RETURNING `+photoColumns+`
	`, leadID, originalPath))
}

// GetPhotoByID returns a single photo.
func (r *Repository) GetPhotoByID(ctx context.Context, id uuid.UUID) (Photo, error) {
	return scanPhoto(r.pool.QueryRow(ctx, `
		SELECT `+photoColumns+`
		FROM photos WHERE id = $1
	`, id))
}

// ListPhotosByLead returns all photos for a lead, oldest first.
func (r *Repository) ListPhotosByLead(ctx context.Context, leadID uuid.UUID) ([]Photo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+photoColumns+`
		FROM photos
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Photo, 0)
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, photo)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// SetProcessedPath records the generated image path. Set-once unless force:
// a non-forced write on an already-processed photo is a no-op, which makes
// duplicate orchestration runs idempotent.
func (r *Repository) SetProcessedPath(ctx context.Context, id uuid.UUID, path string, force bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE photos
		SET processed_path = $2, updated_at = now()
		WHERE id = $1 AND ($3 OR processed_path IS NULL)
	`, id, path, force)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
