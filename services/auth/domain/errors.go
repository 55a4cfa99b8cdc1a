package domain

import "errors"

// Sentinel errors for the user domain. Use errors.Is() to check these.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates the username or email is taken.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password so the login form cannot be used to probe accounts.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInactiveUser indicates the account exists but has been disabled.
	ErrInactiveUser = errors.New("account is disabled")

	// ErrInvalidUsername indicates the username violates domain constraints.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrInvalidEmail indicates the email address is malformed or too long.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrInvalidRole indicates an unknown role name.
	ErrInvalidRole = errors.New("invalid role")

	// ErrWeakPassword indicates the password fails the password policy.
	ErrWeakPassword = errors.New("password does not meet policy")
)
