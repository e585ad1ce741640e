package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"vidtube/internal/apperror"
	"vidtube/internal/models"
	"vidtube/internal/repository"
)

// AccountService covers the signed-in user's own record.
type AccountService struct {
	users  UserStore
	images *ImageUploader
	log    zerolog.Logger
}

func NewAccountService(users UserStore, images *ImageUploader, log zerolog.Logger) *AccountService {
	return &AccountService{users: users, images: images, log: log}
}

func (s *AccountService) CurrentUser(ctx context.Context, userID string) (models.PublicUser, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return models.PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *AccountService) UpdateAccount(ctx context.Context, userID, fullname, email string) (models.PublicUser, error) {
	fullname = strings.TrimSpace(fullname)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullname == "" || email == "" {
		return models.PublicUser{}, apperror.Validation("All fields are required")
	}

	user, err := s.users.UpdateAccount(ctx, userID, fullname, email)
	if err != nil {
		return models.PublicUser{}, s.translate(err, "could not update account")
	}
	return user.Public(), nil
}

func (s *AccountService) UpdateAvatar(ctx context.Context, userID string, upload *ImageUpload) (models.PublicUser, error) {
	if upload == nil {
		return models.PublicUser{}, apperror.Validation("Avatar file is missing")
	}
	return s.replaceImage(ctx, userID, folderAvatars, upload, s.users.UpdateAvatar, func(u models.User) string { return u.Avatar })
}

func (s *AccountService) UpdateCoverImage(ctx context.Context, userID string, upload *ImageUpload) (models.PublicUser, error) {
	if upload == nil {
		return models.PublicUser{}, apperror.Validation("Cover image file is missing")
	}
	return s.replaceImage(ctx, userID, folderCovers, upload, s.users.UpdateCoverImage, func(u models.User) string { return u.CoverImage })
}

type imageUpdate func(ctx context.Context, id, url string) (models.User, error)

// replaceImage uploads the new image, points the user at it and queues the
// previous image for removal.
func (s *AccountService) replaceImage(
	ctx context.Context,
	userID string,
	folder string,
	upload *ImageUpload,
	update imageUpdate,
	current func(models.User) string,
) (models.PublicUser, error) {
	before, err := s.load(ctx, userID)
	if err != nil {
		return models.PublicUser{}, err
	}

	url, err := s.images.Upload(ctx, folder, upload)
	if err != nil {
		return models.PublicUser{}, err
	}

	after, err := update(ctx, userID, url)
	if err != nil {
		s.images.Discard(ctx, url)
		return models.PublicUser{}, s.translate(err, "could not update image")
	}

	if old := current(before); old != "" && old != url {
		s.images.Discard(ctx, old)
	}
	s.log.Info().Str("user_id", userID).Str("folder", folder).Msg("image replaced")
	return after.Public(), nil
}

func (s *AccountService) load(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.User{}, s.translate(err, "could not load user")
	}
	return user, nil
}

func (s *AccountService) translate(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return apperror.NotFound("User does not exist")
	case errors.Is(err, repository.ErrDuplicateUser):
		return apperror.Conflict("email is already in use")
	default:
		return apperror.Internal(msg, err)
	}
}
