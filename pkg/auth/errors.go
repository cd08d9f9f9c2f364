package auth

import "errors"

var (
	// ErrInvalidCredentials indicates the identifier/password pair did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound indicates no account matches the identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists indicates the username, email or phone is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrTooManyAttempts indicates the caller exceeded the login attempt quota.
	ErrTooManyAttempts = errors.New("too many attempts, try again later")

	// ErrOTPSendRateLimited indicates a reset code was requested too soon.
	ErrOTPSendRateLimited = errors.New("too many verification code requests")
	// ErrOTPChallengeInvalid indicates the challenge is unknown, consumed or mismatched.
	ErrOTPChallengeInvalid = errors.New("verification request is invalid")
	// ErrOTPCodeInvalid indicates the submitted code did not match.
	ErrOTPCodeInvalid = errors.New("incorrect verification code")
	// ErrOTPCodeExpired indicates the challenge outlived its validity window.
	ErrOTPCodeExpired = errors.New("verification code expired")
	// ErrOTPCodeRequired indicates an empty code was submitted.
	ErrOTPCodeRequired = errors.New("verification code is required")
	// ErrOTPChallengeRequired indicates no challenge ID was supplied.
	ErrOTPChallengeRequired = errors.New("verification session is required")
)
