package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aacassist/security-core/internal/config"
	"github.com/aacassist/security-core/internal/repository"
)

// Issuer is the fixed issuer claim embedded in every token. Validation
// rejects tokens carrying any other issuer, even if correctly signed.
const Issuer = "aac-assistant"

// TokenKind distinguishes access tokens from refresh tokens
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// ErrInsecureSecret is returned at construction time when the signing
// secret is the shipped default and the deployment is flagged production.
var ErrInsecureSecret = errors.New("refusing to sign tokens with the default secret in production")

// Claims is the session token payload. Access tokens omit the type claim;
// refresh tokens carry type=refresh.
type Claims struct {
	UserID int64           `json:"user_id,omitempty"`
	Role   repository.Role `json:"user_type,omitempty"`
	Kind   TokenKind       `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenKind returns the kind of the token, defaulting to access when the
// type claim is absent.
func (c *Claims) TokenKind() TokenKind {
	if c.Kind == "" {
		return KindAccess
	}
	return c.Kind
}

// TokenService issues and validates signed session credentials. Issuance
// and validation share a single HMAC-SHA256 secret; the algorithm is fixed
// for the lifetime of the system and tokens declaring any other algorithm
// are rejected.
type TokenService struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// TokenServiceConfig holds configuration for TokenService
type TokenServiceConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Production         bool
}

// NewTokenService creates a new TokenService instance. It fails when the
// secret equals the known-insecure default in a production deployment;
// this is a startup-time check, not a per-call check.
func NewTokenService(cfg TokenServiceConfig) (*TokenService, error) {
	if cfg.Production && (cfg.Secret == "" || cfg.Secret == config.InsecureDefaultSecret) {
		return nil, ErrInsecureSecret
	}

	if cfg.AccessTokenExpiry == 0 {
		cfg.AccessTokenExpiry = 120 * time.Minute
	}
	if cfg.RefreshTokenExpiry == 0 {
		cfg.RefreshTokenExpiry = 7 * 24 * time.Hour
	}

	return &TokenService{
		secret:        []byte(cfg.Secret),
		accessExpiry:  cfg.AccessTokenExpiry,
		refreshExpiry: cfg.RefreshTokenExpiry,
	}, nil
}

// IssueAccessToken issues a short-lived credential authorizing API calls
func (s *TokenService) IssueAccessToken(userID int64, username string, role repository.Role) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// IssueRefreshToken issues a long-lived credential used solely to mint new
// access tokens
func (s *TokenService) IssueRefreshToken(userID int64, username string) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: userID,
		Kind:   KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshExpiry)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate checks a token's signature, expiry, issuer and required claims
// together. It is the only validation entry point on the authorization
// path; signature and expiry are never checked in isolation here.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.UserID == 0 || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ValidateAccessToken validates a token and requires it to be an access token
func (s *TokenService) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.TokenKind() != KindAccess {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ValidateRefreshToken validates a token and requires it to be a refresh token
func (s *TokenService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.TokenKind() != KindRefresh {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ValidateSignatureOnly checks only the signature, skipping expiry and all
// other claim validation. Diagnostic use only; it must never feed an
// authorization decision.
func (s *TokenService) ValidateSignatureOnly(tokenString string) bool {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	return err == nil && token.Valid
}

// PeekExpiry decodes the expiry claim without verifying the signature.
// Display use only; it must never feed an authorization decision.
func (s *TokenService) PeekExpiry(tokenString string) (time.Time, bool) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return time.Time{}, false
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}

// AccessTokenExpiry returns the access token lifetime
func (s *TokenService) AccessTokenExpiry() time.Duration {
	return s.accessExpiry
}

// RefreshTokenExpiry returns the refresh token lifetime
func (s *TokenService) RefreshTokenExpiry() time.Duration {
	return s.refreshExpiry
}

// keyFunc returns the shared secret after confirming the declared
// algorithm is HMAC
func (s *TokenService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return s.secret, nil
}
