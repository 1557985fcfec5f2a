// Package session holds the current authenticated identity and persists it
// across restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"teamboard/internal/domain"
)

// Authenticator is the external authentication collaborator.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (domain.User, string, error)
}

// Store is the session store. Construct one with New and share it by
// reference; there is no ambient global session.
type Store struct {
	auth Authenticator
	path string
	Now  func() time.Time

	current *domain.User
	token   string
}

// persistedState is the on-disk shape. Field names are the fixed keys the
// client has always used.
type persistedState struct {
	CurrentUser domain.User `json:"currentUser"`
	Token       string      `json:"token,omitempty"`
}

// New builds a session store persisting to stateDir/session.json.
func New(auth Authenticator, stateDir string) *Store {
	return &Store{
		auth: auth,
		path: filepath.Join(stateDir, "session.json"),
		Now:  time.Now,
	}
}

// Login resolves an identity from the authenticator and persists it. It
// returns false (with domain.ErrAuthenticationFailed) on bad credentials and
// a TransportError when the collaborator is unreachable; in both cases no
// state changes.
func (s *Store) Login(ctx context.Context, email, password string) (bool, error) {
	user, token, err := s.auth.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthenticationFailed) {
			return false, domain.ErrAuthenticationFailed
		}
		return false, err
	}
	s.current = &user
	s.token = token
	if err := s.persist(); err != nil {
		return true, err
	}
	return true, nil
}

// Logout clears the current identity and the persisted state unconditionally.
func (s *Store) Logout() {
	s.current = nil
	s.token = ""
	_ = os.Remove(s.path)
}

// Restore reconstructs the identity from the persisted state at startup.
// Malformed or expired state is cleared and the store stays unauthenticated;
// Restore never fails the process.
func (s *Store) Restore() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var st persistedState
	if err := json.Unmarshal(data, &st); err != nil || st.CurrentUser.ID == "" {
		_ = os.Remove(s.path)
		return
	}
	if st.Token != "" && tokenExpired(st.Token, s.now()) {
		_ = os.Remove(s.path)
		return
	}
	s.current = &st.CurrentUser
	s.token = st.Token
}

// Current returns the authenticated identity, if any.
func (s *Store) Current() (domain.User, bool) {
	if s.current == nil {
		return domain.User{}, false
	}
	return *s.current, true
}

func (s *Store) IsAuthenticated() bool { return s.current != nil }

// Token returns the bearer token for the current session.
func (s *Store) Token() string { return s.token }

func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(persistedState{CurrentUser: *s.current, Token: s.token})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// tokenExpired reads the expiry claim without verifying the signature; the
// client has no signing secret, and an unreadable token is treated as
// expired.
func tokenExpired(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return now.After(claims.ExpiresAt.Time)
}
