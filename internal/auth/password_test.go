package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2 but longer")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "pbkdf2$sha256$") {
		t.Fatalf("unexpected hash encoding: %q", hash)
	}
	if err := VerifyPassword(hash, "hunter2 but longer"); err != nil {
		t.Fatalf("VerifyPassword rejected correct password: %v", err)
	}
	if err := VerifyPassword(hash, "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestHashPasswordSaltsEachCall(t *testing.T) {
	first, err := HashPassword("repeatable secret")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	second, err := HashPassword("repeatable secret")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct salts to produce distinct hashes")
	}
}

func TestHashPasswordRejectsShortPasswords(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	cases := []string{
		"",
		"not-a-hash",
		"pbkdf2$sha256$abc$salt$key",
		"bcrypt$sha256$1000$c2FsdA$a2V5",
		"pbkdf2$sha256$1000$!!$a2V5",
	}
	for _, encoded := range cases {
		if err := VerifyPassword(encoded, "whatever"); err == nil {
			t.Fatalf("expected error for hash %q", encoded)
		}
	}
}
