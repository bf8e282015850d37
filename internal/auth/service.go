package auth

import (
	"errors"
	"strings"
	"time"
)

// Credential is one configured account.
type Credential struct {
	Username     string
	PasswordHash string
}

// ParseCredential decodes the "username:pbkdf2$..." form used in
// configuration.
func ParseCredential(encoded string) (Credential, error) {
	username, hash, ok := strings.Cut(strings.TrimSpace(encoded), ":")
	if !ok || strings.TrimSpace(username) == "" || strings.TrimSpace(hash) == "" {
		return Credential{}, errors.New("credential must use the form username:hash")
	}
	return Credential{Username: strings.TrimSpace(username), PasswordHash: strings.TrimSpace(hash)}, nil
}

// Service authenticates configured accounts and issues bearer tokens for
// them.
type Service struct {
	users    map[string]string
	sessions *SessionManager
}

// NewService builds a Service over the provided accounts. A nil session
// manager gets the in-memory default.
func NewService(credentials []Credential, sessions *SessionManager) *Service {
	users := make(map[string]string, len(credentials))
	for _, cred := range credentials {
		if cred.Username == "" || cred.PasswordHash == "" {
			continue
		}
		users[cred.Username] = cred.PasswordHash
	}
	if sessions == nil {
		sessions = NewSessionManager(0)
	}
	return &Service{users: users, sessions: sessions}
}

// Login verifies the credentials and issues a session token.
func (s *Service) Login(username, password string) (string, time.Time, error) {
	if password == "" {
		return "", time.Time{}, ErrInvalidCredentials
	}
	hash, ok := s.users[username]
	if !ok {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(hash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return "", time.Time{}, ErrInvalidCredentials
		}
		return "", time.Time{}, err
	}
	return s.sessions.Create(username)
}

// Validate resolves a bearer token to the username it was issued for.
func (s *Service) Validate(token string) (string, bool) {
	username, _, ok, err := s.sessions.Validate(token)
	if err != nil || !ok {
		return "", false
	}
	return username, true
}

// Revoke invalidates the provided token.
func (s *Service) Revoke(token string) error {
	return s.sessions.Revoke(token)
}
