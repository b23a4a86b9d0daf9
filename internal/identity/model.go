package identity

import (
	"errors"
	"time"
)

var (
	// ErrUserNotFound is returned by repositories when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken indicates a registration for an email that already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User represents a registered account. PasswordHash is a bcrypt digest.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Credentials request structure.
type Credentials struct {
	Email    string
	Password string
}

// Registration carries the fields accepted on sign up.
type Registration struct {
	Name     string
	Email    string
	Password string
}
