package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, username, password string) *Service {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	return NewService([]Credential{{Username: username, PasswordHash: hash}}, NewSessionManager(time.Hour))
}

func TestServiceLoginAndValidate(t *testing.T) {
	svc := newTestService(t, "operator", "a sound passphrase")

	token, expiresAt, err := svc.Login("operator", "a sound passphrase")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatal("expected expiry in the future")
	}

	username, ok := svc.Validate(token)
	if !ok {
		t.Fatal("expected token to validate")
	}
	if username != "operator" {
		t.Fatalf("expected operator, got %s", username)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t, "operator", "a sound passphrase")

	if _, _, err := svc.Login("operator", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, _, err := svc.Login("nobody", "a sound passphrase"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, _, err := svc.Login("operator", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty password, got %v", err)
	}
}

func TestServiceRevoke(t *testing.T) {
	svc := newTestService(t, "operator", "a sound passphrase")

	token, _, err := svc.Login("operator", "a sound passphrase")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if err := svc.Revoke(token); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if _, ok := svc.Validate(token); ok {
		t.Fatal("expected revoked token to be invalid")
	}
}

func TestParseCredential(t *testing.T) {
	cred, err := ParseCredential(" alice:pbkdf2$sha256$1$c2FsdA$a2V5 ")
	if err != nil {
		t.Fatalf("ParseCredential returned error: %v", err)
	}
	if cred.Username != "alice" {
		t.Fatalf("expected alice, got %q", cred.Username)
	}
	if cred.PasswordHash != "pbkdf2$sha256$1$c2FsdA$a2V5" {
		t.Fatalf("unexpected hash: %q", cred.PasswordHash)
	}

	for _, encoded := range []string{"", "alice", ":hash", "alice:"} {
		if _, err := ParseCredential(encoded); err == nil {
			t.Fatalf("expected error for %q", encoded)
		}
	}
}
