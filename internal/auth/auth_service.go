package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aacassist/security-core/internal/audit"
	"github.com/aacassist/security-core/internal/metrics"
	"github.com/aacassist/security-core/internal/repository"
)

// Actor identifies the authenticated caller of a service operation
type Actor struct {
	ID       int64
	Username string
	Role     repository.Role
}

// AuthService implements the account lifecycle: login, token refresh,
// registration, password rotation and administrative unlock. Every
// security-relevant outcome is written to the audit trail before the
// operation returns.
type AuthService struct {
	users       repository.UserRepository
	assignments repository.AssignmentRepository
	verifier    *CredentialVerifier
	policy      *PasswordPolicy
	tokens      *TokenService
	lockout     *LockoutTracker
	trail       *audit.Trail
	logger      *slog.Logger
}

// NewAuthService creates a new AuthService instance
func NewAuthService(
	users repository.UserRepository,
	assignments repository.AssignmentRepository,
	verifier *CredentialVerifier,
	policy *PasswordPolicy,
	tokens *TokenService,
	lockout *LockoutTracker,
	trail *audit.Trail,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:       users,
		assignments: assignments,
		verifier:    verifier,
		policy:      policy,
		tokens:      tokens,
		lockout:     lockout,
		trail:       trail,
		logger:      logger,
	}
}

// Login authenticates a credential pair and issues an access/refresh token
// pair. The lockout check runs before the password comparison, so a locked
// account is rejected even when the supplied password is correct. Unknown
// usernames and wrong passwords produce the same error and both count
// toward the failure threshold.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, source string) (*TokenPairResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))

	locked, until, err := s.lockout.IsLocked(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("checking lockout: %w", err)
	}
	if locked {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.OutcomeLocked).Inc()
		s.trail.LoginFailed(ctx, username, source, "login rejected, account locked")
		return nil, &AccountLockedError{Until: *until}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, s.recordFailure(ctx, username, source, "unknown username")
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !s.verifier.Verify(req.Password, user.PasswordHash) {
		return nil, s.recordFailure(ctx, username, source, "wrong password")
	}

	if !user.IsActive {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.OutcomeInactive).Inc()
		s.trail.LoginFailed(ctx, username, source, "login rejected, account deactivated")
		return nil, ErrAccountInactive
	}

	if err := s.lockout.ResetAttempts(ctx, username); err != nil {
		s.logger.Error("failed to reset lockout counter", "username", username, "error", err)
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Error("failed to record last login", "user_id", user.ID, "error", err)
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("issuing refresh token: %w", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.TokensIssuedTotal.WithLabelValues(string(KindAccess)).Inc()
	metrics.TokensIssuedTotal.WithLabelValues(string(KindRefresh)).Inc()
	s.trail.LoginSuccess(ctx, user.ID, user.Username, source)

	return &TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.tokens.AccessTokenExpiry().Seconds()),
	}, nil
}

// recordFailure counts a failed attempt, audits it, and returns the error
// the caller should surface. A failure that trips the threshold returns
// the lockout error instead of the generic credential error.
func (s *AuthService) recordFailure(ctx context.Context, username, source, reason string) error {
	state, err := s.lockout.RecordFailure(ctx, username, source)
	if err != nil {
		s.logger.Error("failed to record login failure", "username", username, "error", err)
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.trail.LoginFailed(ctx, username, source, reason)
		return ErrInvalidCredentials
	}

	s.trail.LoginFailed(ctx, username, source, reason)

	if state.Locked {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.OutcomeLocked).Inc()
		metrics.LockoutsTotal.Inc()
		s.trail.AccountLocked(ctx, username, source, *state.LockedUntil, state.AttemptCount)
		return &AccountLockedError{Until: *state.LockedUntil}
	}

	metrics.LoginAttemptsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
	return ErrInvalidCredentials
}

// Refresh exchanges a valid refresh token for a new access token. The
// account is re-read so a deactivation that happened after the refresh
// token was issued is honored.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AccessTokenResponse, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		metrics.TokenValidationsTotal.WithLabelValues(metrics.ValidationInvalid).Inc()
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}

	metrics.TokenValidationsTotal.WithLabelValues(metrics.ValidationOK).Inc()
	metrics.TokensIssuedTotal.WithLabelValues(string(KindAccess)).Inc()

	return &AccessTokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.AccessTokenExpiry().Seconds()),
	}, nil
}

// Register creates a self-service account. A request for an elevated role
// is recorded as a privilege escalation attempt and silently downgraded to
// student; registration itself still proceeds.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest, source string) (*UserResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))

	if violations := s.policy.Validate(req.Password); len(violations) > 0 {
		return nil, &WeakPasswordError{Violations: violations}
	}

	// The unique index on the users table still catches a concurrent
	// insert of the same name after this check.
	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if taken {
		return nil, repository.ErrUsernameTaken
	}

	role := repository.RoleStudent
	if req.Role != "" && req.Role != string(repository.RoleStudent) {
		s.trail.PrivilegeEscalationAttempt(ctx, username, source,
			fmt.Sprintf("registration requested role %q, granted student", req.Role))
	}

	hash, err := s.verifier.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &repository.User{
		Username:     username,
		Email:        optionalString(req.Email),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.trail.AccountCreated(ctx, user.ID, user.Username, source, string(user.Role))

	resp := NewUserResponse(user)
	return &resp, nil
}

// AdminCreateUser creates an account with any valid role. Only reachable
// through the admin surface; the handler enforces the caller's role.
func (s *AuthService) AdminCreateUser(ctx context.Context, actor Actor, req AdminCreateUserRequest, source string) (*UserResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))

	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	if violations := s.policy.Validate(req.Password); len(violations) > 0 {
		return nil, &WeakPasswordError{Violations: violations}
	}

	role, ok := repository.ParseRole(req.Role)
	if !ok {
		return nil, fmt.Errorf("unknown role %q", req.Role)
	}

	hash, err := s.verifier.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &repository.User{
		Username:     username,
		Email:        optionalString(req.Email),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.trail.AccountCreated(ctx, user.ID, user.Username, source, string(user.Role))
	s.trail.AdminAction(ctx, actor.ID, actor.Username, source,
		fmt.Sprintf("created account %q with role %s", user.Username, user.Role))

	resp := NewUserResponse(user)
	return &resp, nil
}

// ChangePassword rotates the caller's credential after re-verifying the
// current one
func (s *AuthService) ChangePassword(ctx context.Context, actor Actor, req ChangePasswordRequest, source string) error {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	if !s.verifier.Verify(req.CurrentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	if violations := s.policy.Validate(req.NewPassword); len(violations) > 0 {
		return &WeakPasswordError{Violations: violations}
	}

	hash, err := s.verifier.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	s.trail.PasswordChanged(ctx, user.ID, user.Username, source)
	return nil
}

// AssignStudent links a student to a teacher for delegated access
// decisions. Both accounts are re-read so the link is validated against
// current roles, not the roles the caller believes they hold.
func (s *AuthService) AssignStudent(ctx context.Context, actor Actor, teacherID, studentID int64, source string) error {
	teacher, err := s.users.GetByID(ctx, teacherID)
	if err != nil {
		return err
	}
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return err
	}
	if teacher.Role != repository.RoleTeacher || student.Role != repository.RoleStudent {
		return ErrInvalidAssignment
	}

	if err := s.assignments.Assign(ctx, teacherID, studentID); err != nil {
		return fmt.Errorf("recording assignment: %w", err)
	}

	s.trail.AdminAction(ctx, actor.ID, actor.Username, source,
		fmt.Sprintf("assigned student %q to teacher %q", student.Username, teacher.Username))
	return nil
}

// UnassignStudent removes a teacher-student link. Idempotent: removing a
// link that does not exist succeeds.
func (s *AuthService) UnassignStudent(ctx context.Context, actor Actor, teacherID, studentID int64, source string) error {
	if err := s.assignments.Unassign(ctx, teacherID, studentID); err != nil {
		return fmt.Errorf("removing assignment: %w", err)
	}

	s.trail.AdminAction(ctx, actor.ID, actor.Username, source,
		fmt.Sprintf("unassigned student %d from teacher %d", studentID, teacherID))
	return nil
}

// UnlockAccount clears any lockout state for the named account. Idempotent:
// unlocking an account that was never locked succeeds.
func (s *AuthService) UnlockAccount(ctx context.Context, actor Actor, username, source string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	if err := s.lockout.Unlock(ctx, username); err != nil {
		return fmt.Errorf("clearing lockout: %w", err)
	}

	metrics.AccountUnlocksTotal.Inc()
	s.trail.AccountUnlocked(ctx, actor.ID, actor.Username, username, source)
	return nil
}

// Profile returns the public view of an account
func (s *AuthService) Profile(ctx context.Context, userID int64) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := NewUserResponse(user)
	return &resp, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
