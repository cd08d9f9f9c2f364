package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestIdentityStore(t *testing.T) *IdentityGormStore {
	t.Helper()
	s, err := NewIdentityStore(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("new identity store: %v", err)
	}
	return s
}

func TestCreateUserAndResolveIdentifiers(t *testing.T) {
	s := newTestIdentityStore(t)
	user, err := s.CreateUser("alice", "alice@example.com", "15550001111", "hash-1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.ID == "" || user.CreatedAt.IsZero() {
		t.Fatalf("user missing generated fields: %+v", user)
	}

	for _, identifier := range []string{"alice", "alice@example.com", "15550001111"} {
		got, ok, err := s.GetUserByIdentifier(identifier)
		if err != nil {
			t.Fatalf("resolve %q: %v", identifier, err)
		}
		if !ok || got.ID != user.ID {
			t.Fatalf("identifier %q resolved wrong user (ok=%v)", identifier, ok)
		}
	}

	if _, ok, err := s.GetUserByIdentifier("nobody"); err != nil || ok {
		t.Fatalf("unknown identifier should miss cleanly: ok=%v err=%v", ok, err)
	}
	got, ok, err := s.GetUserByID(user.ID)
	if err != nil || !ok || got.Username != "alice" {
		t.Fatalf("get by id failed: ok=%v err=%v", ok, err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestIdentityStore(t)
	first, err := s.CreateUser("alice", "alice@example.com", "15550001111", "hash-1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, err = s.CreateUser("bob", "alice@example.com", "15550002222", "hash-2")
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey for duplicate email, got %v", err)
	}

	// The original registration is unaffected.
	got, ok, err := s.GetUserByIdentifier("alice@example.com")
	if err != nil || !ok {
		t.Fatalf("lookup after duplicate attempt: ok=%v err=%v", ok, err)
	}
	if got.ID != first.ID || got.Username != "alice" || got.PasswordHash != "hash-1" {
		t.Fatalf("original registration modified: %+v", got)
	}
}

func TestCreateUserDuplicateUsernameAndPhone(t *testing.T) {
	s := newTestIdentityStore(t)
	if _, err := s.CreateUser("alice", "alice@example.com", "15550001111", "h"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := s.CreateUser("alice", "other@example.com", "15550009999", "h"); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected duplicate username error, got %v", err)
	}
	if _, err := s.CreateUser("carol", "carol@example.com", "15550001111", "h"); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected duplicate phone error, got %v", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	s := newTestIdentityStore(t)
	user, err := s.CreateUser("alice", "alice@example.com", "", "old-hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.UpdatePassword(user.ID, "new-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	got, _, err := s.GetUserByID(user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Fatalf("password hash not updated: %q", got.PasswordHash)
	}
	if err := s.UpdatePassword("ghost", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}
