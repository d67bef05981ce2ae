// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import "errors"

// Sentinel errors for errors.Is dispatch across package boundaries.
var (
	// ErrNotFound is returned when a requested user record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when an insert would duplicate an email.
	ErrDuplicateEmail = errors.New("email already in use")

	// ErrDuplicateUsername is returned when an insert would duplicate a username.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrInvalidCredentials is returned on signin failure. It deliberately
	// covers both unknown-email and wrong-password so callers cannot
	// enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnauthorized is returned when a bearer token is missing, malformed,
	// expired, or carries a bad signature. The specific token failure is
	// never exposed to callers.
	ErrUnauthorized = errors.New("unauthorized")
)
