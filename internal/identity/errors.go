package identity

import "errors"

var (
	// ErrEmailTaken is returned by SignUp when an account already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrInactive           = errors.New("profile is not active")
	ErrOutsideValidity    = errors.New("profile is outside its validity window")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrNoChallenge        = errors.New("no pending verification")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrNoRecipient        = errors.New("no recipient for the selected method")
)
