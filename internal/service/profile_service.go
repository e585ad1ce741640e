package service

import (
	"context"
	"errors"
	"strings"

	"vidtube/internal/apperror"
	"vidtube/internal/models"
	"vidtube/internal/repository"
)

type ProfileService struct {
	profiles ProfileStore
}

func NewProfileService(profiles ProfileStore) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// ChannelProfile looks up a channel by username as seen by viewerID.
func (s *ProfileService) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.ChannelProfile{}, apperror.Validation("username is missing")
	}

	profile, err := s.profiles.ChannelProfile(ctx, username, viewerID)
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return models.ChannelProfile{}, apperror.NotFound("channel does not exist")
		}
		return models.ChannelProfile{}, apperror.Internal("could not load channel", err)
	}
	return profile, nil
}

func (s *ProfileService) WatchHistory(ctx context.Context, userID string) ([]models.WatchedVideo, error) {
	videos, err := s.profiles.WatchHistory(ctx, userID)
	if err != nil {
		return nil, apperror.Internal("could not load watch history", err)
	}
	return videos, nil
}
