package repository

import (
	"context"
	"encoding/json"

	"github.com/okulcms/be-content-moderation/internal/database"
	"github.com/okulcms/be-content-moderation/internal/errs"
)

// ModerationAuditRepository appends and reads immutable moderation audit
// entries. Append is the only mutation exposed; entries are never updated
// or deleted.
type ModerationAuditRepository struct {
	db *database.DB
}

// NewModerationAuditRepository creates a new ModerationAuditRepository.
func NewModerationAuditRepository(db *database.DB) *ModerationAuditRepository {
	return &ModerationAuditRepository{db: db}
}

// Append inserts one audit entry.
func (r *ModerationAuditRepository) Append(ctx context.Context, entry *AuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errs.Wrap(err, errs.CodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO change_request_audit_log
		    (request_id, entity_type, branch_id,
		     action, performed_by,
		     status_before, status_after, metadata)
		VALUES ($1, $2, $3,
		        $4, $5,
		        $6, $7, $8)
		RETURNING id, performed_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.RequestID,
		entry.EntityType,
		entry.BranchID,
		entry.Action,
		entry.PerformedBy,
		entry.StatusBefore,
		entry.StatusAfter,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
	if err != nil {
		return errs.Wrap(err, errs.CodeInternal, "failed to append audit entry")
	}
	return nil
}

// GetByRequestID returns the audit trail for a change request, oldest-first.
func (r *ModerationAuditRepository) GetByRequestID(ctx context.Context, requestID string) ([]*AuditEntry, error) {
	query := `
		SELECT id, request_id, entity_type, branch_id,
		       action, performed_by, performed_at,
		       status_before, status_after, metadata
		FROM change_request_audit_log
		WHERE request_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to get audit trail")
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		var metadataJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.EntityType,
			&entry.BranchID,
			&entry.Action,
			&entry.PerformedBy,
			&entry.PerformedAt,
			&entry.StatusBefore,
			&entry.StatusAfter,
			&metadataJSON,
		)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeInternal, "failed to scan audit entry")
		}
		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, errs.Wrap(err, errs.CodeInternal, "failed to unmarshal audit metadata")
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
