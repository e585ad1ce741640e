package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"vidtube/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateUser        = errors.New("user with email or username already exists")
	ErrRefreshTokenMismatch = errors.New("refresh token does not match")
)

const userColumns = `id::text, username, email, fullname, avatar, COALESCE(cover_image, ''),
	password_hash, COALESCE(refresh_token, ''), created_at, updated_at`

type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (
			id, username, email, fullname, avatar, cover_image, password_hash, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, NULLIF($6, ''), $7, NOW(), NOW()
		)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Fullname,
		user.Avatar,
		user.CoverImage,
		user.PasswordHash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// FindByLogin matches either the username or the email; empty values never match.
func (r *UserRepository) FindByLogin(ctx context.Context, username, email string) (models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE (username = NULLIF($1, '') OR email = NULLIF($2, ''))
		LIMIT 1`
	return scanUser(r.db.QueryRow(ctx, query, username, email))
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	const query = `UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, token)
}

// RotateRefreshToken replaces current with next only if current is still the
// stored token. Of two concurrent rotations with the same token one wins.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	const query = `
		UPDATE users
		SET refresh_token = $3, updated_at = NOW()
		WHERE id = $1 AND refresh_token = $2
	`
	cmd, err := r.db.Exec(ctx, query, id, current, next)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrRefreshTokenMismatch
	}
	return nil
}

// ClearRefreshToken is idempotent: clearing an already empty token is not an error.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	const query = `UPDATE users SET refresh_token = NULL, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *UserRepository) UpdateAccount(ctx context.Context, id, fullname, email string) (models.User, error) {
	query := `UPDATE users SET fullname = $2, email = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRow(ctx, query, id, fullname, email))
	if err != nil && isUniqueViolation(err) {
		return models.User{}, ErrDuplicateUser
	}
	return user, err
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id, url string) (models.User, error) {
	query := `UPDATE users SET avatar = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, id, url))
}

func (r *UserRepository) UpdateCoverImage(ctx context.Context, id, url string) (models.User, error) {
	query := `UPDATE users SET cover_image = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, id, url))
}

// ImageURLs lists every avatar and cover image still referenced by a user.
func (r *UserRepository) ImageURLs(ctx context.Context) ([]string, error) {
	const query = `
		SELECT avatar FROM users
		UNION
		SELECT cover_image FROM users WHERE cover_image IS NOT NULL AND cover_image <> ''
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list image urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Fullname,
		&user.Avatar,
		&user.CoverImage,
		&user.PasswordHash,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
