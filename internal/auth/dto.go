package auth

import (
	"time"

	"github.com/aacassist/security-core/internal/repository"
)

// LoginRequest is the credential payload for the token endpoint
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token to exchange for a new access token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RegisterRequest is the self-service account creation payload. Role is
// advisory and deliberately unconstrained: any value other than student
// is downgraded and audited, never rejected.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"`
}

// AdminCreateUserRequest is the administrative account creation payload
type AdminCreateUserRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=64"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	Role            string `json:"role" validate:"required,oneof=student teacher admin"`
}

// ChangePasswordRequest rotates the caller's own credential
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// AssignmentRequest names the teacher-student pair to link or unlink
type AssignmentRequest struct {
	TeacherID int64 `json:"teacher_id" validate:"required,gt=0"`
	StudentID int64 `json:"student_id" validate:"required,gt=0"`
}

// UnlockAccountRequest names the account an administrator wants unlocked
type UnlockAccountRequest struct {
	Username string `json:"username" validate:"required"`
}

// TokenPairResponse is returned on successful login
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AccessTokenResponse is returned on refresh
type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// UserResponse is the public view of an account; the credential hash is
// never serialized.
type UserResponse struct {
	ID          int64           `json:"id"`
	Username    string          `json:"username"`
	Email       *string         `json:"email,omitempty"`
	Role        repository.Role `json:"role"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	LastLoginAt *time.Time      `json:"last_login_at,omitempty"`
}

// NewUserResponse maps a directory record to its public view
func NewUserResponse(user *repository.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Role:        user.Role,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}
