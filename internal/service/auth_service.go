package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vidtube/internal/apperror"
	"vidtube/internal/ids"
	"vidtube/internal/models"
	"vidtube/internal/repository"
	"vidtube/internal/security"
)

const msgTokenFailure = "something went wrong while generating refresh and access token"

var errPasswordTooLong = apperror.Validation(fmt.Sprintf("password must not exceed %d bytes", security.MaxPasswordBytes))

type AuthService struct {
	users  UserStore
	hasher security.PasswordHasher
	tokens *security.TokenIssuer
	images *ImageUploader
	log    zerolog.Logger
}

func NewAuthService(
	users UserStore,
	hasher security.PasswordHasher,
	tokens *security.TokenIssuer,
	images *ImageUploader,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		images: images,
		log:    log,
	}
}

type RegisterInput struct {
	Fullname   string
	Email      string
	Username   string
	Password   string
	Avatar     *ImageUpload
	CoverImage *ImageUpload
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Session is the result of a login or a refresh.
type Session struct {
	User         models.PublicUser
	AccessToken  string
	RefreshToken string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.PublicUser, error) {
	fullname := strings.TrimSpace(input.Fullname)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if fullname == "" || email == "" || username == "" || strings.TrimSpace(input.Password) == "" {
		return models.PublicUser{}, apperror.Validation("All fields are required")
	}
	if len(input.Password) > security.MaxPasswordBytes {
		return models.PublicUser{}, errPasswordTooLong
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return models.PublicUser{}, apperror.Internal("could not check existing users", err)
	}
	if exists {
		return models.PublicUser{}, apperror.Conflict("User with email or username already exists")
	}

	if input.Avatar == nil {
		return models.PublicUser{}, apperror.Validation("Avatar file is required")
	}

	// Uploads happen before the insert so a failed upload never leaves a user behind.
	avatarURL, err := s.images.Upload(ctx, folderAvatars, input.Avatar)
	if err != nil {
		return models.PublicUser{}, err
	}
	var coverURL string
	if input.CoverImage != nil {
		coverURL, err = s.images.Upload(ctx, folderCovers, input.CoverImage)
		if err != nil {
			s.images.Discard(ctx, avatarURL)
			return models.PublicUser{}, err
		}
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.images.Discard(ctx, avatarURL, coverURL)
		return models.PublicUser{}, apperror.Internal("something went wrong while registering the user", err)
	}

	user, err := s.users.Create(ctx, models.User{
		ID:           ids.New(),
		Username:     username,
		Email:        email,
		Fullname:     fullname,
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		PasswordHash: passwordHash,
	})
	if err != nil {
		s.images.Discard(ctx, avatarURL, coverURL)
		if errors.Is(err, repository.ErrDuplicateUser) {
			return models.PublicUser{}, apperror.Conflict("User with email or username already exists")
		}
		return models.PublicUser{}, apperror.Internal("something went wrong while registering the user", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return user.Public(), nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (Session, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" && email == "" {
		return Session{}, apperror.Validation("username or email is required")
	}

	user, err := s.users.FindByLogin(ctx, username, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Session{}, apperror.NotFound("User does not exist")
		}
		return Session{}, apperror.Internal("could not load user", err)
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		return Session{}, apperror.Auth("Invalid Password")
	}

	access, refresh, err := s.issuePair(user)
	if err != nil {
		return Session{}, apperror.Internal(msgTokenFailure, err)
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return Session{}, apperror.Internal(msgTokenFailure, err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	return Session{User: user.Public(), AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes the stored refresh token. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		return apperror.Internal("could not log out", err)
	}
	s.log.Info().Str("user_id", userID).Msg("user logged out")
	return nil
}

// Refresh rotates the session. The presented token must be the one currently
// stored; once rotated it can never be used again.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, apperror.Auth("unauthorized request")
	}

	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return Session{}, apperror.Auth("Invalid Refresh Token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Session{}, apperror.Auth("Invalid Refresh Token")
		}
		return Session{}, apperror.Internal("could not load user", err)
	}

	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		s.log.Warn().Str("user_id", user.ID).Msg("stale refresh token presented")
		return Session{}, apperror.Auth("Refresh token is expired or used")
	}

	access, next, err := s.issuePair(user)
	if err != nil {
		return Session{}, apperror.Internal(msgTokenFailure, err)
	}
	if err := s.users.RotateRefreshToken(ctx, user.ID, refreshToken, next); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenMismatch) {
			return Session{}, apperror.Auth("Refresh token is expired or used")
		}
		return Session{}, apperror.Internal(msgTokenFailure, err)
	}

	return Session{User: user.Public(), AccessToken: access, RefreshToken: next}, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return apperror.Validation("old and new password are required")
	}
	if len(newPassword) > security.MaxPasswordBytes {
		return errPasswordTooLong
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.NotFound("User does not exist")
		}
		return apperror.Internal("could not load user", err)
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return apperror.Auth("Invalid old password")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperror.Internal("could not change password", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return apperror.Internal("could not change password", err)
	}

	s.log.Info().Str("user_id", userID).Msg("password changed")
	return nil
}

// Authenticate resolves an access token to the user it was issued for.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.PublicUser, error) {
	if accessToken == "" {
		return models.PublicUser{}, apperror.Auth("unauthorized request")
	}

	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return models.PublicUser{}, apperror.Auth("Invalid Access Token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.PublicUser{}, apperror.Auth("Invalid Access Token")
		}
		return models.PublicUser{}, apperror.Internal("could not load user", err)
	}
	return user.Public(), nil
}

func (s *AuthService) AccessTTL() time.Duration  { return s.tokens.AccessTTL() }
func (s *AuthService) RefreshTTL() time.Duration { return s.tokens.RefreshTTL() }

func (s *AuthService) issuePair(user models.User) (string, string, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
