package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword_SaltedAndVerifiable(t *testing.T) {
	a, err := HashPassword("p1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := HashPassword("p1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct encodings for the same input")
	}
	if a == "p1" || strings.Contains(a, "p1") {
		t.Fatalf("hash leaks plaintext: %q", a)
	}
	if !VerifyPassword("p1", a) || !VerifyPassword("p1", b) {
		t.Fatal("expected both encodings to verify")
	}
	if VerifyPassword("p2", a) {
		t.Fatal("wrong password verified")
	}
}

func TestHashPassword_Rejects(t *testing.T) {
	if _, err := HashPassword(""); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	if _, err := HashPassword(strings.Repeat("x", 73)); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField for long password, got %v", err)
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, hash := range []string{"", "not-a-hash", "$2a$10$short", "$argon2id$v=19$m=65536"} {
		if VerifyPassword("p1", hash) {
			t.Fatalf("malformed hash %q verified", hash)
		}
	}
}
