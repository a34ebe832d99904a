package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aacassist/security-core/internal/authz"
	appctx "github.com/aacassist/security-core/internal/context"
	"github.com/aacassist/security-core/internal/metrics"
	"github.com/aacassist/security-core/internal/repository"
)

var validate = validator.New()

// AuthHandler serves the authentication and account endpoints
type AuthHandler struct {
	service *AuthService
	policy  *authz.Policy
	users   repository.UserRepository
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(service *AuthService, policy *authz.Policy, users repository.UserRepository) *AuthHandler {
	return &AuthHandler{
		service: service,
		policy:  policy,
		users:   users,
	}
}

// Login handles POST /api/v1/auth/token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req, getClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req, getClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// ChangePassword handles POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeAuthTokenMissing, "Authentication required", nil)
		return
	}

	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), actor, req, getClientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeAuthTokenMissing, "Authentication required", nil)
		return
	}

	user, err := h.service.Profile(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// GetUser handles GET /api/v1/users/{id}. Access runs through the policy:
// admins see anyone, everyone sees themselves, teachers see students within
// their relationship scope.
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeAuthTokenMissing, "Authentication required", nil)
		return
	}

	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid user ID", nil)
		return
	}

	target, err := h.users.GetByID(r.Context(), targetID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	decision, err := h.policy.Check(r.Context(), authz.Request{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		TargetID:   target.ID,
		TargetRole: target.Role,
		Operation:  "read user profile",
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if !decision.Allowed {
		metrics.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
		writeError(w, http.StatusForbidden, CodeForbidden, "Operation not permitted", nil)
		return
	}
	metrics.AuthzDecisionsTotal.WithLabelValues("allow").Inc()

	writeJSON(w, http.StatusOK, NewUserResponse(target))
}

// decodeAndValidate parses the JSON body and runs struct validation,
// writing the error response itself on failure
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body", nil)
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var details []map[string]string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, ve := range verrs {
				details = append(details, map[string]string{
					"field": ve.Field(),
					"rule":  ve.Tag(),
				})
			}
		}
		writeError(w, http.StatusBadRequest, CodeValidationError, "Request validation failed", details)
		return false
	}

	return true
}

// actorFromContext assembles the caller identity placed by the
// authentication middleware
func actorFromContext(ctx context.Context) (Actor, bool) {
	userID, ok := appctx.ExtractUserID(ctx)
	if !ok {
		return Actor{}, false
	}
	username, _ := appctx.ExtractUsername(ctx)
	role, _ := appctx.ExtractRole(ctx)

	return Actor{
		ID:       userID,
		Username: username,
		Role:     repository.Role(role),
	}, true
}
