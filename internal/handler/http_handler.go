package handler

import (
	"encoding/json"
	"net/http"

	"github.com/okulcms/be-content-moderation/internal/errs"
	"github.com/okulcms/be-content-moderation/internal/logger"
	"github.com/okulcms/be-content-moderation/internal/service"
)

// HTTPHandler handles HTTP requests for the moderation workflow and the
// generic content surface.
type HTTPHandler struct {
	moderation *service.ModerationService
	content    *service.ContentService
	log        *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(moderation *service.ModerationService, content *service.ContentService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		moderation: moderation,
		content:    content,
		log:        log,
	}
}

// ── change requests ───────────────────────────────────────────────────────────

// ProposeChange handles POST /api/v1/change-requests/propose.
func (h *HTTPHandler) ProposeChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req service.ProposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cr, err := h.moderation.Propose(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, cr)
}

// ListChangeRequests handles GET /api/v1/change-requests?status=...
func (h *HTTPHandler) ListChangeRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		status = "PENDING"
	}

	requests, err := h.moderation.List(r.Context(), status)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"requests": requests,
		"total":    len(requests),
	})
}

// GetChangeRequest handles GET /api/v1/change-requests/get?id=...
// The response includes the field-level before/after diff for the reviewer.
func (h *HTTPHandler) GetChangeRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	view, err := h.moderation.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

// ApproveChangeRequest handles POST /api/v1/change-requests/approve.
func (h *HTTPHandler) ApproveChangeRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "APPROVE")
}

// RejectChangeRequest handles POST /api/v1/change-requests/reject.
func (h *HTTPHandler) RejectChangeRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "REJECT")
}

func (h *HTTPHandler) decide(w http.ResponseWriter, r *http.Request, decision string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req service.DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Decision = decision

	cr, err := h.moderation.Decide(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, cr)
}

// GetAuditTrail handles GET /api/v1/change-requests/audit?id=...
func (h *HTTPHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	entries, err := h.moderation.AuditTrail(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ── content ───────────────────────────────────────────────────────────────────

// GetContent handles GET /api/v1/content/get?type=...&id=...
func (h *HTTPHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entityType := r.URL.Query().Get("type")
	id := r.URL.Query().Get("id")
	if entityType == "" || id == "" {
		http.Error(w, "Entity type and ID are required", http.StatusBadRequest)
		return
	}

	rec, err := h.content.Get(r.Context(), entityType, id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}

// ListContent handles GET /api/v1/content?type=...
func (h *HTTPHandler) ListContent(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("type")
	if entityType == "" {
		http.Error(w, "Entity type is required", http.StatusBadRequest)
		return
	}

	records, err := h.content.List(r.Context(), entityType)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"entities": records,
		"total":    len(records),
	})
}

type contentMutationRequest struct {
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload"`
}

// CreateContent handles POST /api/v1/content for unmoderated types.
func (h *HTTPHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	var req contentMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.content.Create(r.Context(), req.EntityType, req.Payload)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, rec)
}

// UpdateContent handles PUT /api/v1/content for unmoderated types.
func (h *HTTPHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	var req contentMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.content.Update(r.Context(), req.EntityType, req.EntityID, req.Payload)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}

// DeleteContent handles DELETE /api/v1/content?type=...&id=...
func (h *HTTPHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("type")
	id := r.URL.Query().Get("id")
	if entityType == "" || id == "" {
		http.Error(w, "Entity type and ID are required", http.StatusBadRequest)
		return
	}

	if err := h.content.Delete(r.Context(), entityType, id); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ── response helpers ──────────────────────────────────────────────────────────

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps the error taxonomy to distinct HTTP responses. The UI
// relies on the machine-readable code to pick its message, so codes are
// never collapsed into a generic failure.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	code := errs.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case errs.CodeValidation:
		status = http.StatusUnprocessableEntity
	case errs.CodeDuplicate, errs.CodeInvalidState:
		status = http.StatusConflict
	case errs.CodeNotFound:
		status = http.StatusNotFound
	case errs.CodeApplyFailed:
		status = http.StatusBadGateway
	case errs.CodeUnauthorized:
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Internal error handling request")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(code),
		"error": errs.Message(err),
	})
}
