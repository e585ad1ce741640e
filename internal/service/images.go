package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"vidtube/internal/apperror"
	"vidtube/internal/media/sniffer"
	"vidtube/internal/storage"
)

const (
	folderAvatars = "avatars"
	folderCovers  = "covers"
)

// ImageUploader validates uploads by content and pushes them to the image host.
type ImageUploader struct {
	host     ImageHost
	janitor  AssetJanitor
	maxBytes int64
	log      zerolog.Logger
}

func NewImageUploader(host ImageHost, janitor AssetJanitor, maxBytes int64, log zerolog.Logger) *ImageUploader {
	return &ImageUploader{
		host:     host,
		janitor:  janitor,
		maxBytes: maxBytes,
		log:      log,
	}
}

func (u *ImageUploader) Upload(ctx context.Context, folder string, upload *ImageUpload) (string, error) {
	detected, data, err := sniffer.Detect(upload.Content, u.maxBytes)
	switch {
	case errors.Is(err, sniffer.ErrTooLarge):
		return "", apperror.Validation(fmt.Sprintf("image must not exceed %d bytes", u.maxBytes))
	case errors.Is(err, sniffer.ErrUnsupportedImage):
		return "", apperror.Validation("only jpeg, png, gif and webp images are allowed")
	case err != nil:
		return "", apperror.Validation("could not read uploaded file")
	}

	url, err := u.host.PutImage(ctx, storage.Image{
		Folder:      folder,
		Ext:         string(detected.Type),
		ContentType: detected.MIME,
		Data:        data,
	})
	if err != nil {
		u.log.Error().Err(err).Str("filename", upload.Filename).Msg("image upload failed")
		return "", apperror.Upload("error while uploading image", err)
	}
	return url, nil
}

// Discard queues urls for removal. Failures are logged; the nightly sweep
// picks up anything left behind.
func (u *ImageUploader) Discard(ctx context.Context, urls ...string) {
	if u.janitor == nil {
		return
	}
	if err := u.janitor.EnqueueRemoval(ctx, urls...); err != nil {
		u.log.Warn().Err(err).Strs("urls", urls).Msg("enqueue image removal failed")
	}
}
