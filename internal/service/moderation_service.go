package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/okulcms/be-content-moderation/internal/errs"
	"github.com/okulcms/be-content-moderation/internal/logger"
	"github.com/okulcms/be-content-moderation/internal/repository"
)

// ChangeRequestStore persists change requests. Implemented by
// repository.ChangeRequestRepository; faked in tests.
type ChangeRequestStore interface {
	Create(ctx context.Context, req *repository.ChangeRequest) error
	ListByStatus(ctx context.Context, status string) ([]*repository.ChangeRequest, error)
	GetByID(ctx context.Context, id string) (*repository.ChangeRequest, error)
	Transition(ctx context.Context, id, toStatus, reviewerID string, reviewNote *string) (*repository.ChangeRequest, error)
}

// ContentStore is the live entity store the workflow applies approved
// changes to. Implemented by repository.ContentRepository.
type ContentStore interface {
	Get(ctx context.Context, entityType, id string) (*repository.ContentRecord, error)
	List(ctx context.Context, entityType string) ([]*repository.ContentRecord, error)
	Insert(ctx context.Context, entityType string, payload []byte) (*repository.ContentRecord, error)
	Update(ctx context.Context, entityType, id string, partial []byte) (*repository.ContentRecord, error)
	Remove(ctx context.Context, entityType, id string) error
}

// AuditStore records the immutable moderation audit trail.
type AuditStore interface {
	Append(ctx context.Context, entry *repository.AuditEntry) error
	GetByRequestID(ctx context.Context, requestID string) ([]*repository.AuditEntry, error)
}

// EventPublisher emits moderation lifecycle events. Publishing is always
// non-fatal to the workflow.
type EventPublisher interface {
	PublishModerationEvent(ctx context.Context, eventType, requestID, branchID, actorID string, payload map[string]any)
}

// IdentityResolver resolves display identity for requesters and reviewers.
type IdentityResolver interface {
	GetUser(ctx context.Context, userID string) (*repository.Identity, error)
}

// ModerationService is the change-request workflow: it turns mutating calls
// on moderated entities into pending change requests and replays the
// captured intent on approval.
type ModerationService struct {
	requests ChangeRequestStore
	content  ContentStore
	audit    AuditStore
	notifier EventPublisher
	identity IdentityResolver
	validate *validator.Validate
	log      *logger.Logger
}

// NewModerationService creates a new ModerationService. audit, notifier and
// identity may be nil; the workflow degrades gracefully without them.
func NewModerationService(
	requests ChangeRequestStore,
	content ContentStore,
	audit AuditStore,
	notifier EventPublisher,
	identity IdentityResolver,
	log *logger.Logger,
) *ModerationService {
	return &ModerationService{
		requests: requests,
		content:  content,
		audit:    audit,
		notifier: notifier,
		identity: identity,
		validate: validator.New(),
		log:      log,
	}
}

// ProposeRequest captures a branch user's intent to mutate a moderated entity.
type ProposeRequest struct {
	EntityType  string          `json:"entity_type" validate:"required"`
	Operation   string          `json:"operation" validate:"required,oneof=CREATE UPDATE DELETE"`
	BranchID    string          `json:"branch_id" validate:"required"`
	EntityID    *string         `json:"entity_id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RequesterID string          `json:"requester_id" validate:"required"`
}

// DecideRequest resolves a pending change request.
type DecideRequest struct {
	RequestID  string  `json:"request_id" validate:"required"`
	Decision   string  `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	ReviewerID string  `json:"reviewer_id" validate:"required"`
	ReviewNote *string `json:"review_note,omitempty"`
}

// ChangeRequestView is a change request decorated for the reviewer UI.
type ChangeRequestView struct {
	*repository.ChangeRequest
	Requester *repository.Identity `json:"requester,omitempty"`
	Reviewer  *repository.Identity `json:"reviewer,omitempty"`
	Changes   []FieldChange        `json:"changes"`
}

// Propose records a pending change request instead of mutating the live
// entity. For UPDATE and DELETE the current entity state is snapshotted as
// oldData; for DELETE the snapshot is also mirrored into newData so the
// reviewer sees exactly what would be removed. The live entity is untouched
// until approval.
func (s *ModerationService) Propose(ctx context.Context, req *ProposeRequest) (*repository.ChangeRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errs.Wrap(err, errs.CodeValidation, "invalid propose request")
	}

	changeType, err := repository.ChangeTypeFor(req.EntityType, req.Operation)
	if err != nil {
		return nil, errs.InvalidInput("operation", err.Error())
	}

	var oldData, newData json.RawMessage
	newData = req.Payload

	if req.Operation == repository.OpCreate {
		if req.EntityID != nil {
			return nil, errs.InvalidInput("entity_id", "must be empty for CREATE requests")
		}
	} else {
		if req.EntityID == nil || *req.EntityID == "" {
			return nil, errs.InvalidInput("entity_id", fmt.Sprintf("required for %s requests", req.Operation))
		}
		rec, err := s.content.Get(ctx, req.EntityType, *req.EntityID)
		if err != nil {
			return nil, err
		}
		oldData = rec.Data
		if req.Operation == repository.OpDelete {
			newData = rec.Data
		}
	}

	if req.Operation != repository.OpDelete {
		if len(newData) == 0 {
			return nil, errs.InvalidInput("payload", fmt.Sprintf("required for %s requests", req.Operation))
		}
		// Snapshots are field-to-value mappings; anything else would only
		// blow up later when the reviewer asks for the diff.
		if !isJSONObject(newData) {
			return nil, errs.InvalidInput("payload", "must be a JSON object")
		}
	}

	cr := &repository.ChangeRequest{
		ChangeType:  changeType,
		BranchID:    req.BranchID,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		OldData:     oldData,
		NewData:     newData,
		RequesterID: req.RequesterID,
	}

	if err := s.requests.Create(ctx, cr); err != nil {
		// DuplicateRequestError is a recoverable, user-facing condition and
		// propagates unchanged.
		return nil, err
	}

	statusAfter := repository.StatusPending
	s.appendAudit(ctx, &repository.AuditEntry{
		RequestID:   cr.ID,
		EntityType:  cr.EntityType,
		BranchID:    cr.BranchID,
		Action:      "submitted",
		PerformedBy: req.RequesterID,
		StatusAfter: &statusAfter,
		Metadata:    map[string]any{"change_type": changeType},
	})
	s.publish(ctx, "change_request.submitted", cr, req.RequesterID, nil)

	s.log.Info().
		Str("request_id", cr.ID).
		Str("change_type", cr.ChangeType).
		Str("branch_id", cr.BranchID).
		Str("requester_id", req.RequesterID).
		Msg("Change request submitted")

	return cr, nil
}

// Decide approves or rejects a pending request. Rejection never touches the
// live entity. Approval applies newData first and transitions only after a
// successful apply: if the apply step fails the request stays PENDING and
// the failure surfaces as ApplyFailedError, so the decision is retryable and
// a request can never be approved-but-unapplied.
func (s *ModerationService) Decide(ctx context.Context, req *DecideRequest) (*repository.ChangeRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errs.Wrap(err, errs.CodeValidation, "invalid decide request")
	}

	cr, err := s.requests.GetByID(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	if cr.Status != repository.StatusPending {
		return nil, errs.InvalidState(fmt.Sprintf("change request is already %s", cr.Status))
	}

	if req.Decision == "REJECT" {
		updated, err := s.requests.Transition(ctx, cr.ID, repository.StatusRejected, req.ReviewerID, req.ReviewNote)
		if err != nil {
			return nil, err
		}
		s.recordDecision(ctx, updated, req, nil)
		s.log.Info().
			Str("request_id", cr.ID).
			Str("change_type", cr.ChangeType).
			Str("reviewer_id", req.ReviewerID).
			Msg("Change request rejected")
		return updated, nil
	}

	applyMeta, err := s.apply(ctx, cr)
	if err != nil {
		s.log.Warn().Err(err).
			Str("request_id", cr.ID).
			Str("change_type", cr.ChangeType).
			Msg("Change request apply failed; request stays pending")
		return nil, err
	}

	updated, err := s.requests.Transition(ctx, cr.ID, repository.StatusApproved, req.ReviewerID, req.ReviewNote)
	if err != nil {
		return nil, err
	}
	s.recordDecision(ctx, updated, req, applyMeta)

	s.log.Info().
		Str("request_id", cr.ID).
		Str("change_type", cr.ChangeType).
		Str("reviewer_id", req.ReviewerID).
		Msg("Change request approved and applied")

	return updated, nil
}

// apply replays the captured intent against the live entity store.
func (s *ModerationService) apply(ctx context.Context, cr *repository.ChangeRequest) (map[string]any, error) {
	switch repository.OperationOf(cr.ChangeType) {
	case repository.OpCreate:
		rec, err := s.content.Insert(ctx, cr.EntityType, cr.NewData)
		if err != nil {
			return nil, errs.ApplyFailed(err, "failed to create entity from approved request")
		}
		return map[string]any{"created_entity_id": rec.ID}, nil
	case repository.OpUpdate:
		if _, err := s.content.Update(ctx, cr.EntityType, *cr.EntityID, cr.NewData); err != nil {
			return nil, errs.ApplyFailed(err, "failed to apply approved update to entity")
		}
		return nil, nil
	case repository.OpDelete:
		if err := s.content.Remove(ctx, cr.EntityType, *cr.EntityID); err != nil {
			return nil, errs.ApplyFailed(err, "failed to remove entity for approved request")
		}
		return nil, nil
	default:
		return nil, errs.New(errs.CodeInternal, fmt.Sprintf("unknown change type %q", cr.ChangeType))
	}
}

// List returns change requests filtered by status ("ALL" for everything),
// newest-first.
func (s *ModerationService) List(ctx context.Context, status string) ([]*repository.ChangeRequest, error) {
	switch status {
	case "ALL", repository.StatusPending, repository.StatusApproved, repository.StatusRejected:
	default:
		return nil, errs.InvalidInput("status", fmt.Sprintf("unknown status %q", status))
	}
	return s.requests.ListByStatus(ctx, status)
}

// Get returns a single request decorated with its field diff and resolved
// requester/reviewer identities for the reviewer UI.
func (s *ModerationService) Get(ctx context.Context, id string) (*ChangeRequestView, error) {
	cr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changes, err := Diff(cr.OldData, cr.NewData)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to diff change request snapshots")
	}

	view := &ChangeRequestView{ChangeRequest: cr, Changes: changes}
	view.Requester = s.resolveIdentity(ctx, cr.RequesterID)
	if cr.ReviewerID != nil {
		view.Reviewer = s.resolveIdentity(ctx, *cr.ReviewerID)
	}
	return view, nil
}

// AuditTrail returns the moderation audit entries for a request.
func (s *ModerationService) AuditTrail(ctx context.Context, requestID string) ([]*repository.AuditEntry, error) {
	if _, err := s.requests.GetByID(ctx, requestID); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []*repository.AuditEntry{}, nil
	}
	return s.audit.GetByRequestID(ctx, requestID)
}

// ── internal helpers ──────────────────────────────────────────────────────────

func (s *ModerationService) recordDecision(ctx context.Context, cr *repository.ChangeRequest, req *DecideRequest, extra map[string]any) {
	action := "rejected"
	event := "change_request.rejected"
	if cr.Status == repository.StatusApproved {
		action = "approved"
		event = "change_request.approved"
	}

	metadata := map[string]any{"change_type": cr.ChangeType}
	if req.ReviewNote != nil {
		metadata["review_note"] = *req.ReviewNote
	}
	for k, v := range extra {
		metadata[k] = v
	}

	statusBefore := repository.StatusPending
	s.appendAudit(ctx, &repository.AuditEntry{
		RequestID:    cr.ID,
		EntityType:   cr.EntityType,
		BranchID:     cr.BranchID,
		Action:       action,
		PerformedBy:  req.ReviewerID,
		StatusBefore: &statusBefore,
		StatusAfter:  &cr.Status,
		Metadata:     metadata,
	})
	s.publish(ctx, event, cr, req.ReviewerID, extra)
}

// appendAudit writes an audit entry, logging a warning on failure. Audit
// write failures never fail the workflow operation itself.
func (s *ModerationService) appendAudit(ctx context.Context, entry *repository.AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("request_id", entry.RequestID).
			Str("action", entry.Action).
			Msg("Failed to write moderation audit entry")
	}
}

func (s *ModerationService) publish(ctx context.Context, eventType string, cr *repository.ChangeRequest, actorID string, extra map[string]any) {
	if s.notifier == nil {
		return
	}
	payload := map[string]any{
		"change_type": cr.ChangeType,
		"entity_type": cr.EntityType,
	}
	for k, v := range extra {
		payload[k] = v
	}
	s.notifier.PublishModerationEvent(ctx, eventType, cr.ID, cr.BranchID, actorID, payload)
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

// resolveIdentity looks up display identity, degrading to id-only when the
// identity service is unavailable.
func (s *ModerationService) resolveIdentity(ctx context.Context, userID string) *repository.Identity {
	if s.identity == nil {
		return &repository.Identity{ID: userID}
	}
	ident, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		s.log.Debug().Err(err).Str("user_id", userID).Msg("Could not resolve user identity")
		return &repository.Identity{ID: userID}
	}
	return ident
}
