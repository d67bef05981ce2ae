// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// MaxPasswordBytes is the longest accepted password. bcrypt only consumes
// the first 72 bytes of its input, so anything longer must be rejected up
// front rather than silently truncated or failed at hashing time.
const MaxPasswordBytes = 72

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// emailRegex accepts local@domain with at least one dot in the domain.
// Deliverability is not checked; this only rejects obviously malformed input.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User represents an identity record.
//
// Email and username are each unique across all records; uniqueness is
// enforced by the repository's backing store, never by application logic.
// CreatedAt is immutable after creation.
type User struct {
	ID           ulid.ULID
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// NewUser creates a validated User with an assigned ID and creation
// timestamp. The email is lowercased so uniqueness is case-insensitive.
// passwordHash must already be produced by a PasswordHasher; raw passwords
// never reach this constructor.
func NewUser(email, username, passwordHash string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_EMPTY_HASH").Errorf("password hash cannot be empty")
	}

	return &User{
		ID:           ulid.Make(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// NormalizeEmail lowercases and trims an email address. All lookups and
// stored records use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates the shape of an email address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("field", "email").
			Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("field", "email").
			Errorf("invalid email format")
	}
	return nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("field", "username").
			Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("field", "username").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("field", "username").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("field", "username").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidatePassword validates the shape of a raw password before hashing.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("field", "password").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("field", "password").
			With("max", MaxPasswordBytes).
			Errorf("password must be at most %d bytes", MaxPasswordBytes)
	}
	return nil
}

// UserRepository manages user persistence.
//
// Implementations must enforce email and username uniqueness through the
// backing store's own constraints so that two concurrent inserts for the
// same value resolve to exactly one success, even across process instances.
type UserRepository interface {
	// Create stores a new user. The uniqueness check and the insert are a
	// single atomic operation; on conflict it returns ErrDuplicateEmail or
	// ErrDuplicateUsername depending on which field collided.
	Create(ctx context.Context, user *User) error

	// FindByID retrieves a user by ID. Returns ErrNotFound if absent.
	FindByID(ctx context.Context, id ulid.ULID) (*User, error)

	// FindByEmail retrieves a user by normalized email.
	// Returns ErrNotFound if absent.
	FindByEmail(ctx context.Context, email string) (*User, error)
}
