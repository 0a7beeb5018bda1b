package repository

import (
	"context"
	"errors"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/jackc/pgx/v5"

	"github.com/okulcms/be-content-moderation/internal/database"
	"github.com/okulcms/be-content-moderation/internal/errs"
)

// ContentRepository is the live entity store: one logical collection per
// entity type over a single JSONB-document table. It serves both moderated
// entities (written only through approvals) and unmoderated CMS content.
type ContentRepository struct {
	db *database.DB
}

// NewContentRepository creates a new ContentRepository.
func NewContentRepository(db *database.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Get retrieves one entity.
func (r *ContentRepository) Get(ctx context.Context, entityType, id string) (*ContentRecord, error) {
	query := `
		SELECT entity_type, id, data, created_at, updated_at
		FROM content_entities
		WHERE entity_type = $1 AND id = $2
	`

	rec := &ContentRecord{}
	err := r.db.QueryRow(ctx, query, entityType, id).Scan(
		&rec.EntityType, &rec.ID, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound(entityType, id)
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to get entity")
	}
	return rec, nil
}

// List returns all entities of a type, newest-first.
func (r *ContentRepository) List(ctx context.Context, entityType string) ([]*ContentRecord, error) {
	query := `
		SELECT entity_type, id, data, created_at, updated_at
		FROM content_entities
		WHERE entity_type = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, entityType)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to list entities")
	}
	defer rows.Close()

	var out []*ContentRecord
	for rows.Next() {
		rec := &ContentRecord{}
		if err := rows.Scan(&rec.EntityType, &rec.ID, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, errs.Wrap(err, errs.CodeInternal, "failed to scan entity")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Insert stores a new entity and returns the stored record.
func (r *ContentRepository) Insert(ctx context.Context, entityType string, payload []byte) (*ContentRecord, error) {
	query := `
		INSERT INTO content_entities (entity_type, data)
		VALUES ($1, $2)
		RETURNING entity_type, id, data, created_at, updated_at
	`

	rec := &ContentRecord{}
	err := r.db.QueryRow(ctx, query, entityType, payload).Scan(
		&rec.EntityType, &rec.ID, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to insert entity")
	}
	return rec, nil
}

// Update applies partial as an RFC 7386 merge patch: fields present in the
// patch replace the stored values, fields absent from it are left unchanged.
// The row is locked for the duration so concurrent merges cannot interleave.
func (r *ContentRepository) Update(ctx context.Context, entityType, id string, partial []byte) (*ContentRecord, error) {
	rec := &ContentRecord{}

	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var current []byte
		err := tx.QueryRow(ctx,
			`SELECT data FROM content_entities WHERE entity_type = $1 AND id = $2 FOR UPDATE`,
			entityType, id,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound(entityType, id)
		}
		if err != nil {
			return errs.Wrap(err, errs.CodeInternal, "failed to lock entity for update")
		}

		merged, err := jsonpatch.MergePatch(current, partial)
		if err != nil {
			return errs.Wrap(err, errs.CodeInternal, "failed to merge entity data")
		}

		return tx.QueryRow(ctx, `
			UPDATE content_entities
			SET data = $3, updated_at = NOW()
			WHERE entity_type = $1 AND id = $2
			RETURNING entity_type, id, data, created_at, updated_at
		`, entityType, id, merged).Scan(
			&rec.EntityType, &rec.ID, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt)
	})
	if err != nil {
		var coded *errs.Error
		if errors.As(err, &coded) {
			return nil, err
		}
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to update entity")
	}
	return rec, nil
}

// Remove deletes an entity.
func (r *ContentRepository) Remove(ctx context.Context, entityType, id string) error {
	query := `
		DELETE FROM content_entities
		WHERE entity_type = $1 AND id = $2
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, entityType, id).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.NotFound(entityType, id)
	}
	if err != nil {
		return errs.Wrap(err, errs.CodeInternal, "failed to remove entity")
	}
	return nil
}
