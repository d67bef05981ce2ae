// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/auth/postgres"
)

func testUser(t *testing.T) *auth.User {
	t.Helper()
	user, err := auth.NewUser("a@b.com", "alice", "some-hash")
	require.NoError(t, err)
	return user
}

func uniqueViolation(constraint string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           pgerrcode.UniqueViolation,
		ConstraintName: constraint,
	}
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface, user *auth.User)
		wantErr   error
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface, user *auth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Email, user.Username, user.PasswordHash, user.CreatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			wantErr: nil,
		},
		{
			name: "email unique violation",
			setupMock: func(mock pgxmock.PgxPoolIface, user *auth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Email, user.Username, user.PasswordHash, user.CreatedAt).
					WillReturnError(uniqueViolation("users_email_key"))
			},
			wantErr: auth.ErrDuplicateEmail,
		},
		{
			name: "username unique violation",
			setupMock: func(mock pgxmock.PgxPoolIface, user *auth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Email, user.Username, user.PasswordHash, user.CreatedAt).
					WillReturnError(uniqueViolation("users_username_key"))
			},
			wantErr: auth.ErrDuplicateUsername,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			user := testUser(t)
			tt.setupMock(mock, user)

			repo := postgres.NewUserRepository(mock)
			err = repo.Create(ctx, user)

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("other database errors pass through untranslated", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		user := testUser(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(user.ID.String(), user.Email, user.Username, user.PasswordHash, user.CreatedAt).
			WillReturnError(errors.New("connection refused"))

		repo := postgres.NewUserRepository(mock)
		err = repo.Create(ctx, user)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrDuplicateEmail)
		assert.NotErrorIs(t, err, auth.ErrDuplicateUsername)
	})
}

func TestUserRepository_FindByEmail(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	userID := ulid.Make()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "created_at"}).
			AddRow(userID.String(), "a@b.com", "alice", "some-hash", now)
		mock.ExpectQuery(`SELECT id, email, username, password_hash, created_at`).
			WithArgs("a@b.com").
			WillReturnRows(rows)

		repo := postgres.NewUserRepository(mock)
		user, err := repo.FindByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		assert.Equal(t, userID, user.ID)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, now, user.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("normalizes email before lookup", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "created_at"}).
			AddRow(userID.String(), "a@b.com", "alice", "some-hash", now)
		mock.ExpectQuery(`SELECT id, email, username, password_hash, created_at`).
			WithArgs("a@b.com").
			WillReturnRows(rows)

		repo := postgres.NewUserRepository(mock)
		_, err = repo.FindByEmail(ctx, "  A@B.Com ")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent user maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, email, username, password_hash, created_at`).
			WithArgs("nobody@b.com").
			WillReturnRows(pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "created_at"}))

		repo := postgres.NewUserRepository(mock)
		_, err = repo.FindByEmail(ctx, "nobody@b.com")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_FindByID(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	userID := ulid.Make()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "created_at"}).
			AddRow(userID.String(), "a@b.com", "alice", "some-hash", now)
		mock.ExpectQuery(`SELECT id, email, username, password_hash, created_at`).
			WithArgs(userID.String()).
			WillReturnRows(rows)

		repo := postgres.NewUserRepository(mock)
		user, err := repo.FindByID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", user.Email)
	})

	t.Run("absent user maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, email, username, password_hash, created_at`).
			WithArgs(userID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "created_at"}))

		repo := postgres.NewUserRepository(mock)
		_, err = repo.FindByID(ctx, userID)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("corrupt stored id surfaces an error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "created_at"}).
			AddRow("not-a-ulid", "a@b.com", "alice", "some-hash", now)
		mock.ExpectQuery(`SELECT id, email, username, password_hash, created_at`).
			WithArgs(userID.String()).
			WillReturnRows(rows)

		repo := postgres.NewUserRepository(mock)
		_, err = repo.FindByID(ctx, userID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}
