package auth

import (
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when hashing an empty plaintext
var ErrEmptyPassword = errors.New("password must not be empty")

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 12

// CredentialVerifier wraps bcrypt hashing and verification. It has no side
// effects beyond computation and a diagnostic log on malformed hashes.
type CredentialVerifier struct {
	cost   int
	logger *slog.Logger
}

// NewCredentialVerifier creates a new CredentialVerifier instance
func NewCredentialVerifier(logger *slog.Logger) *CredentialVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialVerifier{
		cost:   BcryptCost,
		logger: logger,
	}
}

// Hash creates a bcrypt hash of the plaintext. bcrypt generates a random
// salt per call, so identical inputs never produce identical hashes.
func (v *CredentialVerifier) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), v.cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Verify compares a plaintext with its stored hash. It never panics on a
// malformed hash: anything other than a clean mismatch is logged as a
// diagnostic and reported as a non-match. Recording the security event is
// the caller's responsibility.
func (v *CredentialVerifier) Verify(plaintext, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true
	}

	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		v.logger.Warn("credential hash could not be compared", "error", err)
	}

	return false
}
