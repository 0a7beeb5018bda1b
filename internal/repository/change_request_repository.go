package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/okulcms/be-content-moderation/internal/database"
	"github.com/okulcms/be-content-moderation/internal/errs"
)

// pendingUniqueIndex is the partial unique index that allows at most one
// PENDING request per (branch, entity type, entity id, change type) tuple.
const pendingUniqueIndex = "change_requests_one_pending"

// ChangeRequestRepository persists change requests and is the sole authority
// on status transitions.
type ChangeRequestRepository struct {
	db *database.DB
}

// NewChangeRequestRepository creates a new ChangeRequestRepository.
func NewChangeRequestRepository(db *database.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

// Create inserts a new PENDING request. Duplicate-pending prevention is a
// single atomic write: the partial unique index raises a unique violation
// which surfaces as a DuplicateRequestError, never a check-then-insert race.
func (r *ChangeRequestRepository) Create(ctx context.Context, req *ChangeRequest) error {
	op := OperationOf(req.ChangeType)
	if (op == OpCreate || op == OpUpdate) && len(req.NewData) == 0 {
		return errs.InvalidInput("new_data", fmt.Sprintf("new data is required for %s requests", req.ChangeType))
	}

	query := `
		INSERT INTO change_requests
		    (change_type, status, branch_id, entity_type, entity_id,
		     old_data, new_data, requester_id)
		VALUES ($1, $2, $3, $4, $5,
		        $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		req.ChangeType,
		StatusPending,
		req.BranchID,
		req.EntityType,
		req.EntityID,
		req.OldData,
		req.NewData,
		req.RequesterID,
	).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == pendingUniqueIndex {
			return errs.Duplicate(fmt.Sprintf(
				"a pending %s request already exists for this entity", req.ChangeType))
		}
		return errs.Wrap(err, errs.CodeInternal, "failed to create change request")
	}

	req.Status = StatusPending
	return nil
}

// ListByStatus returns requests newest-first. Status "ALL" returns everything.
func (r *ChangeRequestRepository) ListByStatus(ctx context.Context, status string) ([]*ChangeRequest, error) {
	query := `
		SELECT id, change_type, status, branch_id, entity_type, entity_id,
		       old_data, new_data, requester_id, reviewer_id, review_note,
		       created_at, reviewed_at
		FROM change_requests
	`
	args := []any{}
	if status != "ALL" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to list change requests")
	}
	defer rows.Close()

	var out []*ChangeRequest
	for rows.Next() {
		req, err := scanChangeRequest(rows)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeInternal, "failed to scan change request")
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// GetByID retrieves a request by its primary key.
func (r *ChangeRequestRepository) GetByID(ctx context.Context, id string) (*ChangeRequest, error) {
	query := `
		SELECT id, change_type, status, branch_id, entity_type, entity_id,
		       old_data, new_data, requester_id, reviewer_id, review_note,
		       created_at, reviewed_at
		FROM change_requests
		WHERE id = $1
	`

	req, err := scanChangeRequest(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("change_request", id)
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to get change request")
	}
	return req, nil
}

// Transition resolves a PENDING request to APPROVED or REJECTED. The guard
// lives in the WHERE clause so two concurrent reviewers cannot both win:
// exactly one conditional write succeeds, the other sees InvalidStateError.
func (r *ChangeRequestRepository) Transition(ctx context.Context, id, toStatus, reviewerID string, reviewNote *string) (*ChangeRequest, error) {
	if toStatus != StatusApproved && toStatus != StatusRejected {
		return nil, errs.InvalidInput("status", fmt.Sprintf("cannot transition to %q", toStatus))
	}

	query := `
		UPDATE change_requests
		SET status      = $2,
		    reviewer_id = $3,
		    review_note = $4,
		    reviewed_at = NOW()
		WHERE id = $1
		  AND status = 'PENDING'
		RETURNING id, change_type, status, branch_id, entity_type, entity_id,
		          old_data, new_data, requester_id, reviewer_id, review_note,
		          created_at, reviewed_at
	`

	req, err := scanChangeRequest(r.db.QueryRow(ctx, query, id, toStatus, reviewerID, reviewNote))
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a missing request from one already resolved.
		var current string
		probeErr := r.db.QueryRow(ctx, `SELECT status FROM change_requests WHERE id = $1`, id).Scan(&current)
		if errors.Is(probeErr, pgx.ErrNoRows) {
			return nil, errs.NotFound("change_request", id)
		}
		if probeErr != nil {
			return nil, errs.Wrap(probeErr, errs.CodeInternal, "failed to check change request status")
		}
		return nil, errs.InvalidState(fmt.Sprintf("change request is already %s", current))
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to transition change request")
	}
	return req, nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

type requestScanner interface {
	Scan(dest ...any) error
}

func scanChangeRequest(row requestScanner) (*ChangeRequest, error) {
	req := &ChangeRequest{}
	err := row.Scan(
		&req.ID,
		&req.ChangeType,
		&req.Status,
		&req.BranchID,
		&req.EntityType,
		&req.EntityID,
		&req.OldData,
		&req.NewData,
		&req.RequesterID,
		&req.ReviewerID,
		&req.ReviewNote,
		&req.CreatedAt,
		&req.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}
