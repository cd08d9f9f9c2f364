package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestSessionStore(t *testing.T, ttl time.Duration) *SessionStore {
	t.Helper()
	secretPath := filepath.Join(t.TempDir(), "session.key")
	store, err := NewSessionStore(secretPath, ttl)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return store
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestSessionStore(t, time.Hour)
	token, err := store.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, ok, err := store.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if !ok || userID != "user-1" {
		t.Fatalf("expected user-1, got %q (ok=%v)", userID, ok)
	}
}

func TestSessionSecretPersistsAcrossRestart(t *testing.T) {
	secretPath := filepath.Join(t.TempDir(), "session.key")
	first, err := NewSessionStore(secretPath, time.Hour)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	token, err := first.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	second, err := NewSessionStore(secretPath, time.Hour)
	if err != nil {
		t.Fatalf("reopen session store: %v", err)
	}
	userID, ok, err := second.GetUserIDByToken(token)
	if err != nil || !ok || userID != "user-1" {
		t.Fatalf("token should survive restart: user=%q ok=%v err=%v", userID, ok, err)
	}
	if info, err := os.Stat(secretPath); err != nil || info.Mode().Perm() != 0o600 {
		t.Fatalf("secret file should exist with 0600 perms: %v", err)
	}
}

func TestSessionRejectsForeignAndExpiredTokens(t *testing.T) {
	store := newTestSessionStore(t, time.Hour)
	other := newTestSessionStore(t, time.Hour)
	token, err := other.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := store.GetUserIDByToken(token); ok {
		t.Fatalf("token signed with a foreign secret should not validate")
	}
	if _, ok, _ := store.GetUserIDByToken("not-a-jwt"); ok {
		t.Fatalf("malformed token should not validate")
	}

	expiring := newTestSessionStore(t, -2*time.Minute)
	expired, err := expiring.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := expiring.GetUserIDByToken(expired); ok {
		t.Fatalf("expired token should not validate")
	}
}
