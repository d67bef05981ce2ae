// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Service orchestrates signup, signin, and token authentication. It holds
// no mutable state of its own; all durable state lives in the repository's
// backing store and token verification is pure.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	tokens *TokenCodec
	logger *slog.Logger
	now    func() time.Time

	// dummyHash is verified when a signin targets an absent email, so that
	// path performs the same hashing work as a real mismatch. Produced by
	// the configured hasher at construction so its work factor always
	// matches the hashes stored for real users. It never corresponds to a
	// usable credential.
	dummyHash string
}

// NewService creates a Service. All dependencies are required.
func NewService(users UserRepository, hasher PasswordHasher, tokens *TokenCodec) (*Service, error) {
	return NewServiceWithLogger(users, hasher, tokens, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger. The
// logger receives the detailed internal error variants that are flattened
// before they reach callers.
func NewServiceWithLogger(users UserRepository, hasher PasswordHasher, tokens *TokenCodec, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("token codec is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("logger is required")
	}

	dummyHash, err := hasher.Hash("keygate-timing-equalizer")
	if err != nil {
		return nil, oops.Code("AUTH_DUMMY_HASH_FAILED").
			With("operation", "hash dummy credential").
			Wrap(err)
	}

	return &Service{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		logger:    logger,
		now:       time.Now,
		dummyHash: dummyHash,
	}, nil
}

// Signup registers a new user and issues a token bound to the new identity.
//
// Order: validate input shape, hash the password, attempt the atomic
// repository insert, then issue the token. If the insert fails on a
// duplicate, no token is issued and no partial record remains; which field
// conflicted is reported via ErrDuplicateEmail / ErrDuplicateUsername.
func (s *Service) Signup(ctx context.Context, email, username, password string) (string, *User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return "", nil, err
	}
	if err := ValidateUsername(username); err != nil {
		return "", nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return "", nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, username, hash)
	if err != nil {
		return "", nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) || errors.Is(err, ErrDuplicateUsername) {
			return "", nil, err
		}
		return "", nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email, s.now())
	if err != nil {
		return "", nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user signed up",
		"user_id", user.ID.String(),
		"username", user.Username)

	return token, user, nil
}

// Signin authenticates an existing user by email and password and issues a
// fresh token. Unknown email and wrong password both yield
// ErrInvalidCredentials; a dummy hash is verified when the user is absent
// so response time does not reveal whether the account exists.
func (s *Service) Signin(ctx context.Context, email, password string) (string, *User, error) {
	email = NormalizeEmail(email)

	user, lookupErr := s.users.FindByEmail(ctx, email)

	targetHash := s.dummyHash
	userExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return "", nil, oops.Code("AUTH_SIGNIN_FAILED").
				With("operation", "find user by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify so absent-user and wrong-password take the same path.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return "", nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		return "", nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !userExists || !valid {
		return "", nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.ID, user.Email, s.now())
	if err != nil {
		return "", nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user signed in", "user_id", user.ID.String())

	return token, user, nil
}

// Authenticate verifies a bearer token and resolves the embedded subject to
// the current user record. Every token failure collapses to ErrUnauthorized
// before it reaches the caller; the detailed variant is kept for logging
// only.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*User, error) {
	claims, err := s.tokens.Verify(tokenString, s.now())
	if err != nil {
		return nil, s.unauthorized(ctx, "verify token", err)
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, s.unauthorized(ctx, "parse token subject", err)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, s.unauthorized(ctx, "resolve token subject", err)
		}
		return nil, oops.Code("AUTH_AUTHENTICATE_FAILED").
			With("operation", "find user by id").
			Wrap(err)
	}
	return user, nil
}

// unauthorized logs the detailed token failure and returns the flattened
// caller-facing error.
func (s *Service) unauthorized(ctx context.Context, operation string, err error) error {
	s.logger.DebugContext(ctx, "token rejected",
		"operation", operation,
		"error", err)
	return oops.Code("AUTH_UNAUTHORIZED").Wrap(ErrUnauthorized)
}
