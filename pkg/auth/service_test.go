package auth

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"neurochat/internal/ratelimit"
	"neurochat/pkg/domain"
	"neurochat/pkg/store"
)

type fakeIdentityStore struct {
	users map[string]domain.User
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{users: make(map[string]domain.User)}
}

func (f *fakeIdentityStore) CreateUser(username, email, phone, passwordHash string) (domain.User, error) {
	for _, u := range f.users {
		if u.Username == username || u.Email == email || (phone != "" && u.Phone == phone) {
			return domain.User{}, store.ErrDuplicateKey
		}
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeIdentityStore) GetUserByIdentifier(identifier string) (domain.User, bool, error) {
	for _, u := range f.users {
		if u.Username == identifier || u.Email == strings.ToLower(identifier) || u.Phone == identifier {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (f *fakeIdentityStore) GetUserByID(id string) (domain.User, bool, error) {
	u, ok := f.users[id]
	return u, ok, nil
}

func (f *fakeIdentityStore) UpdatePassword(userID, passwordHash string) error {
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = passwordHash
	f.users[userID] = u
	return nil
}

type recordingMailer struct {
	sent []struct{ to, subject, body string }
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.sent = append(m.sent, struct{ to, subject, body string }{to, subject, body})
	return nil
}

func (m *recordingMailer) lastBody(t *testing.T) string {
	t.Helper()
	if len(m.sent) == 0 {
		t.Fatalf("no mail sent")
	}
	return m.sent[len(m.sent)-1].body
}

func newTestService(t *testing.T) (*Service, *fakeIdentityStore, *recordingMailer, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	otp, err := NewOTPStore(client)
	if err != nil {
		t.Fatalf("new otp store: %v", err)
	}
	sessions, err := NewSessionStore(filepath.Join(t.TempDir(), "session.key"), time.Hour)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(client, "test:auth", 10, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	users := newFakeIdentityStore()
	mail := &recordingMailer{}
	svc, err := NewService(users, otp, sessions, mail, limiter, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, users, mail, srv
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, mail, _ := newTestService(t)
	user, err := svc.Register("alice", "Alice@Example.com", "15550001111", "Str0ng#Password!")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if len(mail.sent) != 1 || mail.sent[0].subject != "Welcome to NeuroChat" {
		t.Fatalf("expected one welcome mail, got %+v", mail.sent)
	}

	// Login by username, email and phone all resolve the same account.
	for _, identifier := range []string{"alice", "alice@example.com", "15550001111"} {
		got, _, err := svc.Login(identifier, "Str0ng#Password!", false)
		if err != nil {
			t.Fatalf("login via %q: %v", identifier, err)
		}
		if got.ID != user.ID {
			t.Fatalf("login via %q resolved wrong user", identifier)
		}
	}

	if _, _, err := svc.Login("alice", "wrong-password", false); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.Register("alice", "alice@example.com", "", "Str0ng#Password!"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register("alice", "other@example.com", "", "Str0ng#Password!"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected duplicate username to fail, got %v", err)
	}
}

func TestLoginRememberMeAndResume(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	user, err := svc.Register("alice", "alice@example.com", "", "Str0ng#Password!")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_, token, err := svc.Login("alice", "Str0ng#Password!", true)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a session token with rememberMe")
	}
	resumed, ok, err := svc.Resume(token)
	if err != nil || !ok {
		t.Fatalf("resume: ok=%v err=%v", ok, err)
	}
	if resumed.ID != user.ID {
		t.Fatalf("resume returned wrong user")
	}
}

func TestLoginThrottled(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.Register("alice", "alice@example.com", "", "Str0ng#Password!"); err != nil {
		t.Fatalf("register: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, _, err := svc.Login("alice", "wrong", false); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, err)
		}
	}
	if _, _, err := svc.Login("alice", "Str0ng#Password!", false); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected throttle after repeated failures, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, mail, _ := newTestService(t)
	if _, err := svc.Register("alice", "alice@example.com", "", "Str0ng#Password!"); err != nil {
		t.Fatalf("register: %v", err)
	}

	challengeID, err := svc.RequestPasswordReset("alice")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	body := mail.lastBody(t)
	code := strings.TrimSpace(strings.TrimPrefix(body, "Your OTP for password reset is:"))
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code in mail body, got %q", body)
	}

	// The wrong code must not change the password.
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if err := svc.ResetPassword("alice", challengeID, wrong, "N3w#Password!!"); !errors.Is(err, ErrOTPCodeInvalid) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	if _, _, err := svc.Login("alice", "Str0ng#Password!", false); err != nil {
		t.Fatalf("old password should still work: %v", err)
	}

	if err := svc.ResetPassword("alice", challengeID, code, "N3w#Password!!"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if _, _, err := svc.Login("alice", "N3w#Password!!", false); err != nil {
		t.Fatalf("new password should work: %v", err)
	}
	if _, _, err := svc.Login("alice", "Str0ng#Password!", false); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password should be rejected, got %v", err)
	}
}

func TestPasswordResetUnknownUser(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.RequestPasswordReset("ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}
