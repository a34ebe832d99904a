package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/aacassist/security-core/internal/config"
	"github.com/aacassist/security-core/internal/repository"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService(TokenServiceConfig{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.Int64Range(1, 1<<40).Draw(t, "userID")
		username := rapid.StringMatching(`[a-z][a-z0-9_]{2,20}`).Draw(t, "username")
		role := rapid.SampledFrom([]repository.Role{
			repository.RoleStudent, repository.RoleTeacher, repository.RoleAdmin,
		}).Draw(t, "role")

		token, err := svc.IssueAccessToken(userID, username, role)
		if err != nil {
			t.Fatalf("IssueAccessToken: %v", err)
		}

		claims, err := svc.ValidateAccessToken(token)
		if err != nil {
			t.Fatalf("ValidateAccessToken: %v", err)
		}

		if claims.UserID != userID {
			t.Fatalf("user ID: got %d, want %d", claims.UserID, userID)
		}
		if claims.Subject != username {
			t.Fatalf("subject: got %q, want %q", claims.Subject, username)
		}
		if claims.Role != role {
			t.Fatalf("role: got %q, want %q", claims.Role, role)
		}
		if claims.Issuer != Issuer {
			t.Fatalf("issuer: got %q, want %q", claims.Issuer, Issuer)
		}
		if claims.TokenKind() != KindAccess {
			t.Fatalf("kind: got %q, want access", claims.TokenKind())
		}
	})
}

func TestExpiredTokenRejected(t *testing.T) {
	svc, err := NewTokenService(TokenServiceConfig{
		Secret:            "test-secret",
		AccessTokenExpiry: -time.Minute,
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, err := svc.IssueAccessToken(7, "alice", repository.RoleTeacher)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if _, err := svc.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTamperedSignatureRejected(t *testing.T) {
	svc := newTestTokenService(t)

	token, err := svc.IssueAccessToken(7, "alice", repository.RoleStudent)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token format: %d segments", len(parts))
	}

	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := svc.Validate(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTamperedPayloadRejected(t *testing.T) {
	svc := newTestTokenService(t)

	token, err := svc.IssueAccessToken(7, "alice", repository.RoleStudent)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	// Payload from a second token, signature from the first.
	other, err := svc.IssueAccessToken(8, "mallory", repository.RoleAdmin)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	parts := strings.Split(token, ".")
	otherParts := strings.Split(other, ".")
	spliced := parts[0] + "." + otherParts[1] + "." + parts[2]

	if _, err := svc.Validate(spliced); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	svc := newTestTokenService(t)
	other, err := NewTokenService(TokenServiceConfig{Secret: "different-secret"})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, err := other.IssueAccessToken(7, "alice", repository.RoleStudent)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshTokenKindEnforced(t *testing.T) {
	svc := newTestTokenService(t)

	access, err := svc.IssueAccessToken(7, "alice", repository.RoleStudent)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	refresh, err := svc.IssueRefreshToken(7, "alice")
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	if _, err := svc.ValidateRefreshToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := svc.ValidateAccessToken(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}

	claims, err := svc.ValidateRefreshToken(refresh)
	if err != nil {
		t.Fatalf("ValidateRefreshToken: %v", err)
	}
	if claims.TokenKind() != KindRefresh {
		t.Fatalf("kind: got %q, want refresh", claims.TokenKind())
	}
	if claims.ID == "" {
		t.Fatal("refresh token missing jti")
	}
}

func TestValidateSignatureOnlyIgnoresExpiry(t *testing.T) {
	svc, err := NewTokenService(TokenServiceConfig{
		Secret:            "test-secret",
		AccessTokenExpiry: -time.Minute,
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, err := svc.IssueAccessToken(7, "alice", repository.RoleStudent)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if _, err := svc.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if !svc.ValidateSignatureOnly(token) {
		t.Fatal("signature check failed on an expired but authentic token")
	}
	if svc.ValidateSignatureOnly(token + "x") {
		t.Fatal("signature check passed on a corrupted token")
	}
}

func TestPeekExpiry(t *testing.T) {
	svc := newTestTokenService(t)

	before := time.Now()
	token, err := svc.IssueAccessToken(7, "alice", repository.RoleStudent)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	exp, ok := svc.PeekExpiry(token)
	if !ok {
		t.Fatal("PeekExpiry failed on a valid token")
	}

	want := before.Add(svc.AccessTokenExpiry())
	if exp.Before(want.Add(-time.Minute)) || exp.After(want.Add(time.Minute)) {
		t.Fatalf("expiry out of range: got %v, want about %v", exp, want)
	}

	if _, ok := svc.PeekExpiry("not-a-token"); ok {
		t.Fatal("PeekExpiry succeeded on garbage")
	}
}

func TestInsecureSecretRefusedInProduction(t *testing.T) {
	_, err := NewTokenService(TokenServiceConfig{
		Secret:     config.InsecureDefaultSecret,
		Production: true,
	})
	if !errors.Is(err, ErrInsecureSecret) {
		t.Fatalf("expected ErrInsecureSecret, got %v", err)
	}

	_, err = NewTokenService(TokenServiceConfig{Secret: "", Production: true})
	if !errors.Is(err, ErrInsecureSecret) {
		t.Fatalf("expected ErrInsecureSecret for empty secret, got %v", err)
	}

	// Development tolerates the default secret.
	if _, err := NewTokenService(TokenServiceConfig{Secret: config.InsecureDefaultSecret}); err != nil {
		t.Fatalf("development rejected the default secret: %v", err)
	}
}
