package crypto

import (
	"encoding/base64"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("expected url-safe base64 token: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("expected 32 random bytes, got %d", len(raw))
	}

	other, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if other == token {
		t.Fatal("expected distinct tokens")
	}
}

func TestGenerateTokenRejectsNonPositiveLength(t *testing.T) {
	if _, err := GenerateToken(0); err != ErrInvalidTokenLength {
		t.Fatalf("expected ErrInvalidTokenLength, got %v", err)
	}
}

func TestHashToken(t *testing.T) {
	first := HashToken("abc")
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	if !EqualHash(first, HashToken("abc")) {
		t.Fatal("expected hashing to be deterministic")
	}
	if EqualHash(first, HashToken("abd")) {
		t.Fatal("expected different inputs to produce different digests")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("temporary-secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if hash == "temporary-secret" {
		t.Fatal("expected hashed password")
	}
	if !VerifyPassword(hash, "temporary-secret") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "incorrect") {
		t.Fatal("expected mismatch for wrong password")
	}
}
