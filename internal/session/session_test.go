package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"teamboard/internal/domain"
)

type fakeAuth struct {
	user  domain.User
	token string
	err   error
}

func (f fakeAuth) Authenticate(context.Context, string, string) (domain.User, string, error) {
	if f.err != nil {
		return domain.User{}, "", f.err
	}
	return f.user, f.token, nil
}

func signedToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "2",
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestLoginPersistsAndRestores(t *testing.T) {
	dir := t.TempDir()
	user := domain.User{ID: "2", Name: "Joao Silva", Email: "joao@teamboard.dev", Role: domain.RoleMember}
	token := signedToken(t, time.Now().Add(24*time.Hour))

	s := New(fakeAuth{user: user, token: token}, dir)
	ok, err := s.Login(context.Background(), user.Email, "senha123")
	if err != nil || !ok {
		t.Fatalf("login = %v, %v", ok, err)
	}
	if !s.IsAuthenticated() {
		t.Fatal("expected authenticated session")
	}

	// A fresh store restores the same identity from disk.
	restored := New(fakeAuth{}, dir)
	restored.Restore()
	got, ok := restored.Current()
	if !ok {
		t.Fatal("restore should recover the identity")
	}
	if got.ID != user.ID || got.Name != user.Name {
		t.Fatalf("restored user = %+v, want %+v", got, user)
	}
	if restored.Token() != token {
		t.Fatal("restored token mismatch")
	}
}

func TestLoginFailureLeavesNoState(t *testing.T) {
	dir := t.TempDir()
	s := New(fakeAuth{err: domain.ErrAuthenticationFailed}, dir)

	ok, err := s.Login(context.Background(), "joao@teamboard.dev", "wrong")
	if ok || !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("login = %v, %v; want false, ErrAuthenticationFailed", ok, err)
	}
	if s.IsAuthenticated() {
		t.Fatal("failed login must not authenticate")
	}
	if _, err := os.Stat(filepath.Join(dir, "session.json")); !os.IsNotExist(err) {
		t.Fatal("failed login must not persist state")
	}
}

func TestLoginTransportErrorLeavesNoState(t *testing.T) {
	dir := t.TempDir()
	s := New(fakeAuth{err: domain.TransportError{Op: "authenticate", Err: errors.New("connection refused")}}, dir)

	ok, err := s.Login(context.Background(), "joao@teamboard.dev", "senha123")
	if ok {
		t.Fatal("unreachable backend must not authenticate")
	}
	var te domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if s.IsAuthenticated() {
		t.Fatal("session changed on transport failure")
	}
}

func TestRestoreClearsMalformedState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := New(fakeAuth{}, dir)
	s.Restore()
	if s.IsAuthenticated() {
		t.Fatal("malformed state must not authenticate")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("malformed state should be cleared")
	}
}

func TestRestoreClearsExpiredToken(t *testing.T) {
	dir := t.TempDir()
	user := domain.User{ID: "2", Name: "Joao Silva", Email: "joao@teamboard.dev", Role: domain.RoleMember}
	expired := signedToken(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	seed := New(fakeAuth{user: user, token: expired}, dir)
	if _, err := seed.Login(context.Background(), user.Email, "senha123"); err != nil {
		t.Fatalf("login: %v", err)
	}

	s := New(fakeAuth{}, dir)
	s.Now = func() time.Time { return time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC) }
	s.Restore()
	if s.IsAuthenticated() {
		t.Fatal("expired token must not restore")
	}
	if _, err := os.Stat(filepath.Join(dir, "session.json")); !os.IsNotExist(err) {
		t.Fatal("expired state should be cleared")
	}
}

func TestLogoutClears(t *testing.T) {
	dir := t.TempDir()
	user := domain.User{ID: "2", Name: "Joao Silva", Email: "joao@teamboard.dev", Role: domain.RoleMember}
	s := New(fakeAuth{user: user, token: signedToken(t, time.Now().Add(time.Hour))}, dir)
	if _, err := s.Login(context.Background(), user.Email, "senha123"); err != nil {
		t.Fatalf("login: %v", err)
	}

	s.Logout()
	if s.IsAuthenticated() || s.Token() != "" {
		t.Fatal("logout should clear the session")
	}
	if _, err := os.Stat(filepath.Join(dir, "session.json")); !os.IsNotExist(err) {
		t.Fatal("logout should remove persisted state")
	}

	// Logging out again is harmless.
	s.Logout()
}
