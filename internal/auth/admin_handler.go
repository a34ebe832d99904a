package auth

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aacassist/security-core/internal/audit"
)

// AdminHandler serves the administrative endpoints. Routes mounting it must
// sit behind the admin-role middleware.
type AdminHandler struct {
	service *AuthService
	trail   *audit.Trail
}

// NewAdminHandler creates a new AdminHandler instance
func NewAdminHandler(service *AuthService, trail *audit.Trail) *AdminHandler {
	return &AdminHandler{
		service: service,
		trail:   trail,
	}
}

// CreateUser handles POST /api/v1/admin/users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeAuthTokenMissing, "Authentication required", nil)
		return
	}

	var req AdminCreateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.service.AdminCreateUser(r.Context(), actor, req, getClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// UnlockAccount handles POST /api/v1/admin/unlock-account
func (h *AdminHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeAuthTokenMissing, "Authentication required", nil)
		return
	}

	var req UnlockAccountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.UnlockAccount(r.Context(), actor, req.Username, getClientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "account unlocked"})
}

// CreateAssignment handles POST /api/v1/admin/assignments
func (h *AdminHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeAuthTokenMissing, "Authentication required", nil)
		return
	}

	var req AssignmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.AssignStudent(r.Context(), actor, req.TeacherID, req.StudentID, getClientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "assignment created"})
}

// DeleteAssignment handles DELETE /api/v1/admin/assignments
func (h *AdminHandler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeAuthTokenMissing, "Authentication required", nil)
		return
	}

	var req AssignmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.UnassignStudent(r.Context(), actor, req.TeacherID, req.StudentID, getClientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "assignment removed"})
}

// auditEventResponse is the wire form of one audit record
type auditEventResponse struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Type          string         `json:"type"`
	Severity      string         `json:"severity"`
	ActorUserID   *int64         `json:"actor_user_id,omitempty"`
	ActorUsername *string        `json:"actor_username,omitempty"`
	SourceAddress *string        `json:"source_address,omitempty"`
	Description   string         `json:"description"`
	Success       bool           `json:"success"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// ListAuditEvents handles GET /api/v1/admin/audit-events. Supports
// filtering by event type, actor username and a result limit.
func (h *AdminHandler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	filter := audit.ListFilter{
		Type:          audit.EventType(r.URL.Query().Get("type")),
		ActorUsername: r.URL.Query().Get("username"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid limit", nil)
			return
		}
		filter.Limit = limit
	}

	events, err := h.trail.Recent(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			ID:            e.ID.String(),
			Timestamp:     e.Timestamp,
			Type:          string(e.Type),
			Severity:      string(e.Severity),
			ActorUserID:   e.ActorUserID,
			ActorUsername: e.ActorUsername,
			SourceAddress: e.SourceAddress,
			Description:   e.Description,
			Success:       e.Success,
			Extra:         e.Extra,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": out,
		"count":  len(out),
	})
}
