package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidtube/internal/models"
)

var userRowColumns = []string{
	"id", "username", "email", "fullname", "avatar", "cover_image",
	"password_hash", "refresh_token", "created_at", "updated_at",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	input := models.User{
		ID:           "7f7e8c1a-1111-4a4a-9b9b-000000000001",
		Username:     "alice",
		Email:        "a@x.com",
		Fullname:     "Alice A",
		Avatar:       "https://img.local/avatars/a.png",
		PasswordHash: "$2a$10$hash",
	}

	t.Run("inserts and returns timestamps", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("INSERT INTO users").
			WithArgs(input.ID, input.Username, input.Email, input.Fullname, input.Avatar, "", input.PasswordHash).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		created, err := NewUserRepository(mock).Create(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, input.ID, created.ID)
		assert.Equal(t, now, created.CreatedAt)
		assert.Equal(t, now, created.UpdatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to duplicate", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("INSERT INTO users").
			WithArgs(input.ID, input.Username, input.Email, input.Fullname, input.Avatar, "", input.PasswordHash).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		_, err := NewUserRepository(mock).Create(ctx, input)
		assert.ErrorIs(t, err, ErrDuplicateUser)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("INSERT INTO users").
			WithArgs(input.ID, input.Username, input.Email, input.Fullname, input.Avatar, "", input.PasswordHash).
			WillReturnError(errors.New("connection reset"))

		_, err := NewUserRepository(mock).Create(ctx, input)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insert user")
		assert.NotErrorIs(t, err, ErrDuplicateUser)
	})
}

func TestUserRepository_FindByLogin(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`WHERE \(username = NULLIF`).
			WithArgs("alice", "").
			WillReturnRows(pgxmock.NewRows(userRowColumns).AddRow(
				"id-1", "alice", "a@x.com", "Alice A", "https://img/a.png", "",
				"$2a$10$hash", "refresh-1", now, now,
			))

		user, err := NewUserRepository(mock).FindByLogin(ctx, "alice", "")
		require.NoError(t, err)
		assert.Equal(t, "id-1", user.ID)
		assert.Equal(t, "$2a$10$hash", user.PasswordHash)
		assert.Equal(t, "refresh-1", user.RefreshToken)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`WHERE \(username = NULLIF`).
			WithArgs("", "nobody@x.com").
			WillReturnRows(pgxmock.NewRows(userRowColumns))

		_, err := NewUserRepository(mock).FindByLogin(ctx, "", "nobody@x.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUserRepository_ExistsByUsernameOrEmail(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("alice", "a@x.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := NewUserRepository(mock).ExistsByUsernameOrEmail(context.Background(), "alice", "a@x.com")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RotateRefreshToken(t *testing.T) {
	ctx := context.Background()

	t.Run("swaps when current matches", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE users").
			WithArgs("id-1", "old", "new").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewUserRepository(mock).RotateRefreshToken(ctx, "id-1", "old", "new"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mismatch when token was already rotated", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE users").
			WithArgs("id-1", "old", "new").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := NewUserRepository(mock).RotateRefreshToken(ctx, "id-1", "old", "new")
		assert.ErrorIs(t, err, ErrRefreshTokenMismatch)
	})
}

func TestUserRepository_ClearRefreshToken_Idempotent(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("UPDATE users SET refresh_token = NULL").
		WithArgs("id-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users SET refresh_token = NULL").
		WithArgs("id-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewUserRepository(mock)
	require.NoError(t, repo.ClearRefreshToken(context.Background(), "id-1"))
	require.NoError(t, repo.ClearRefreshToken(context.Background(), "id-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdatePassword_MissingUser(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("missing", "$2a$10$new").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewUserRepository(mock).UpdatePassword(context.Background(), "missing", "$2a$10$new")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_UpdateAccount_EmailTaken(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("UPDATE users SET fullname").
		WithArgs("id-1", "Alice B", "b@x.com").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := NewUserRepository(mock).UpdateAccount(context.Background(), "id-1", "Alice B", "b@x.com")
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestUserRepository_UpdateCoverImage(t *testing.T) {
	now := time.Now().UTC()
	mock := newMock(t)
	mock.ExpectQuery("UPDATE users SET cover_image").
		WithArgs("id-1", "https://img/cover.png").
		WillReturnRows(pgxmock.NewRows(userRowColumns).AddRow(
			"id-1", "alice", "a@x.com", "Alice A", "https://img/a.png", "https://img/cover.png",
			"$2a$10$hash", "", now, now,
		))

	user, err := NewUserRepository(mock).UpdateCoverImage(context.Background(), "id-1", "https://img/cover.png")
	require.NoError(t, err)
	assert.Equal(t, "https://img/cover.png", user.CoverImage)
	assert.Equal(t, "https://img/a.png", user.Avatar)
}

func TestUserRepository_ImageURLs(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT avatar FROM users").
		WillReturnRows(pgxmock.NewRows([]string{"avatar"}).
			AddRow("https://img/a.png").
			AddRow("https://img/cover.png"))

	urls, err := NewUserRepository(mock).ImageURLs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img/a.png", "https://img/cover.png"}, urls)
}
