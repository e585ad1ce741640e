package service

import (
	"context"
	"io"

	"vidtube/internal/models"
	"vidtube/internal/storage"
)

type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, username, email string) (models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, current, next string) error
	ClearRefreshToken(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateAccount(ctx context.Context, id, fullname, email string) (models.User, error)
	UpdateAvatar(ctx context.Context, id, url string) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (models.User, error)
}

type ProfileStore interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID string) ([]models.WatchedVideo, error)
}

type ImageHost interface {
	PutImage(ctx context.Context, img storage.Image) (string, error)
}

// AssetJanitor schedules removal of images no user points at any more.
type AssetJanitor interface {
	EnqueueRemoval(ctx context.Context, urls ...string) error
}

// ImageUpload is an image file received from a client. A nil *ImageUpload
// means the field was not sent.
type ImageUpload struct {
	Filename string
	Content  io.Reader
}
