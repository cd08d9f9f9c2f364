package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"neurochat/internal/ratelimit"
	"neurochat/pkg/audit"
	"neurochat/pkg/domain"
	"neurochat/pkg/mailer"
	"neurochat/pkg/store"
)

// Service implements account registration, login, remember-me sessions and
// the OTP-backed password reset flow.
type Service struct {
	users    store.IdentityStore
	otp      *OTPStore
	sessions *SessionStore
	mail     mailer.Mailer
	limiter  *ratelimit.FixedWindowLimiter
	recorder audit.Recorder
}

// NewService wires the auth service. The limiter and recorder are optional;
// pass nil to disable login throttling or usage recording.
func NewService(
	users store.IdentityStore,
	otp *OTPStore,
	sessions *SessionStore,
	mail mailer.Mailer,
	limiter *ratelimit.FixedWindowLimiter,
	recorder audit.Recorder,
) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth service requires an identity store")
	}
	if sessions == nil {
		return nil, errors.New("auth service requires a session store")
	}
	if mail == nil {
		mail = mailer.Nop{}
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		users:    users,
		otp:      otp,
		sessions: sessions,
		mail:     mail,
		limiter:  limiter,
		recorder: recorder,
	}, nil
}

// Register creates an account and sends the welcome mail best-effort.
func (s *Service) Register(username, email, phone, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	phone = strings.TrimSpace(phone)
	if username == "" {
		return domain.User{}, errors.New("username is required")
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return domain.User{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(username, email, phone, hash)
	if errors.Is(err, store.ErrDuplicateKey) {
		return domain.User{}, ErrUserExists
	}
	if err != nil {
		return domain.User{}, err
	}
	s.recorder.Record(user.ID, "Registered account", username)
	if err := s.mail.Send(email, "Welcome to NeuroChat",
		"Hello!\n\n"+
			"Thank you for registering an account with NeuroChat.\n"+
			"We look forward to helping you explore advanced AI capabilities.\n\n"+
			"Best Regards,\nNeuroChat Team",
	); err != nil {
		slog.Warn("welcome mail failed", "email", maskEmail(email), "error", err)
	}
	return user, nil
}

// Login resolves the identifier (username, email or phone), verifies the
// password and returns the user with a fresh session token when rememberMe
// is set. Failed attempts are throttled per identifier.
func (s *Service) Login(identifier, password string, rememberMe bool) (domain.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if s.limiter != nil && !s.limiter.Allow("login:"+strings.ToLower(identifier)) {
		return domain.User{}, "", ErrTooManyAttempts
	}
	user, found, err := s.users.GetUserByIdentifier(identifier)
	if err != nil {
		return domain.User{}, "", err
	}
	if !found || !CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	var token string
	if rememberMe {
		token, err = s.sessions.NewSession(user.ID)
		if err != nil {
			return domain.User{}, "", fmt.Errorf("issue session: %w", err)
		}
	}
	s.recorder.Record(user.ID, "Logged in", "")
	return user, token, nil
}

// Resume validates a persisted session token and returns the user it
// belongs to.
func (s *Service) Resume(token string) (domain.User, bool, error) {
	userID, ok, err := s.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	user, found, err := s.users.GetUserByID(userID)
	if err != nil || !found {
		return domain.User{}, false, err
	}
	return user, true, nil
}

// RequestPasswordReset issues an OTP challenge for the account matching the
// identifier and mails the code to the account's email address. It returns
// the challenge ID the caller must present to ResetPassword.
func (s *Service) RequestPasswordReset(identifier string) (string, error) {
	user, found, err := s.users.GetUserByIdentifier(strings.TrimSpace(identifier))
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrUserNotFound
	}
	if s.otp == nil {
		return "", errors.New("password reset is not configured")
	}
	challengeID, code, _, _, err := s.otp.CreateChallenge(user.Email)
	if err != nil {
		return "", err
	}
	if err := s.mail.Send(user.Email, "NeuroChat - Password Reset OTP",
		fmt.Sprintf("Your OTP for password reset is: %s", code)); err != nil {
		return "", fmt.Errorf("send reset code: %w", err)
	}
	s.recorder.Record(user.ID, "Requested password reset", maskEmail(user.Email))
	return challengeID, nil
}

// ResetPassword verifies the OTP challenge and only then replaces the
// account's password hash. An unverified code never reaches the store.
func (s *Service) ResetPassword(identifier, challengeID, code, newPassword string) error {
	user, found, err := s.users.GetUserByIdentifier(strings.TrimSpace(identifier))
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}
	if s.otp == nil {
		return errors.New("password reset is not configured")
	}
	if err := s.otp.VerifyChallenge(challengeID, user.Email, code); err != nil {
		return err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(user.ID, hash); err != nil {
		return err
	}
	s.recorder.Record(user.ID, "Reset password", "")
	return nil
}
