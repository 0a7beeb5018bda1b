package repository

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ── Domain types for the change-request workflow ─────────────────────────────

// Change request lifecycle statuses. A request starts PENDING and moves
// exactly once to APPROVED or REJECTED.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Operations captured by a change request.
const (
	OpCreate = "CREATE"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Moderated entity types — every create/update/delete on these goes through
// the approval workflow.
const (
	EntityTeacher = "teacher"
	EntityPackage = "package"
	EntityBlog    = "blog"
	EntitySuccess = "success"
	EntityStudent = "student"
)

// moderatedOps lists the operations each moderated type accepts.
// Students have no update screen; their records are only enrolled or removed.
var moderatedOps = map[string][]string{
	EntityTeacher: {OpCreate, OpUpdate, OpDelete},
	EntityPackage: {OpCreate, OpUpdate, OpDelete},
	EntityBlog:    {OpCreate, OpUpdate, OpDelete},
	EntitySuccess: {OpCreate, OpUpdate, OpDelete},
	EntityStudent: {OpCreate, OpDelete},
}

// IsModerated reports whether entityType must pass through the workflow.
func IsModerated(entityType string) bool {
	_, ok := moderatedOps[entityType]
	return ok
}

// ChangeTypeFor derives the tagged change type (e.g. TEACHER_UPDATE) from an
// entity type and operation, validating that the pair is supported.
func ChangeTypeFor(entityType, operation string) (string, error) {
	ops, ok := moderatedOps[entityType]
	if !ok {
		return "", fmt.Errorf("entity type %q is not moderated", entityType)
	}
	for _, op := range ops {
		if op == operation {
			return strings.ToUpper(entityType) + "_" + operation, nil
		}
	}
	return "", fmt.Errorf("operation %q is not supported for entity type %q", operation, entityType)
}

// OperationOf extracts the operation suffix from a change type.
func OperationOf(changeType string) string {
	i := strings.LastIndex(changeType, "_")
	if i < 0 {
		return ""
	}
	return changeType[i+1:]
}

// ChangeRequest is a proposed mutation awaiting review. Requests are never
// deleted; resolved ones remain as the audit trail.
type ChangeRequest struct {
	ID          string          `json:"id"`
	ChangeType  string          `json:"change_type"`
	Status      string          `json:"status"`
	BranchID    string          `json:"branch_id"`
	EntityType  string          `json:"entity_type"`
	EntityID    *string         `json:"entity_id,omitempty"`
	OldData     json.RawMessage `json:"old_data,omitempty"`
	NewData     json.RawMessage `json:"new_data,omitempty"`
	RequesterID string          `json:"requester_id"`
	ReviewerID  *string         `json:"reviewer_id,omitempty"`
	ReviewNote  *string         `json:"review_note,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ReviewedAt  *time.Time      `json:"reviewed_at,omitempty"`
}

// Identity is display information for a requester or reviewer, resolved
// from the identity service at read time.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ContentRecord is one live entity in the content store.
type ContentRecord struct {
	EntityType string          `json:"entity_type"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AuditEntry is one immutable record in the moderation audit log.
type AuditEntry struct {
	ID           string         `json:"id"`
	RequestID    string         `json:"request_id"`
	EntityType   string         `json:"entity_type"`
	BranchID     string         `json:"branch_id"`
	Action       string         `json:"action"` // submitted | approved | rejected
	PerformedBy  string         `json:"performed_by"`
	PerformedAt  time.Time      `json:"performed_at"`
	StatusBefore *string        `json:"status_before,omitempty"`
	StatusAfter  *string        `json:"status_after,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
