package auth

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	verifier := NewCredentialVerifier(nil)

	rapid.Check(t, func(t *rapid.T) {
		password := rapid.StringMatching(`[!-~]{1,64}`).Draw(t, "password")

		hash, err := verifier.Hash(password)
		if err != nil {
			t.Fatalf("Hash: %v", err)
		}

		if !verifier.Verify(password, hash) {
			t.Fatal("correct password rejected")
		}
		if verifier.Verify(password+"x", hash) {
			t.Fatal("wrong password accepted")
		}
	})
}

func TestHashesAreSalted(t *testing.T) {
	verifier := NewCredentialVerifier(nil)

	first, err := verifier.Hash("Secret1A")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	second, err := verifier.Hash("Secret1A")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if first == second {
		t.Fatal("identical plaintexts produced identical hashes")
	}
	if !verifier.Verify("Secret1A", first) || !verifier.Verify("Secret1A", second) {
		t.Fatal("salted hashes failed verification")
	}
}

func TestEmptyPasswordRejected(t *testing.T) {
	verifier := NewCredentialVerifier(nil)

	if _, err := verifier.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestMalformedHashDoesNotPanic(t *testing.T) {
	verifier := NewCredentialVerifier(nil)

	for _, hash := range []string{"", "not-a-hash", "$2a$garbage"} {
		if verifier.Verify("anything", hash) {
			t.Fatalf("malformed hash %q verified", hash)
		}
	}
}
