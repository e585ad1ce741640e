package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidtube/internal/apperror"
	"vidtube/internal/models"
	"vidtube/internal/service/servicetest"
)

func TestProfileService_ChannelProfile(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "a@x.com", "p1")
	bob := f.register(t, "bob", "b@x.com", "p1")
	carol := f.register(t, "carol", "c@x.com", "p1")

	profiles := &servicetest.Profiles{
		Users: f.users,
		Subscriptions: []servicetest.Subscription{
			{Subscriber: bob.ID, Channel: alice.ID},
			{Subscriber: carol.ID, Channel: alice.ID},
			{Subscriber: alice.ID, Channel: bob.ID},
		},
	}
	svc := NewProfileService(profiles)
	ctx := context.Background()

	_, err := svc.ChannelProfile(ctx, "  ", bob.ID)
	requireKind(t, err, apperror.KindValidation, "username is missing")

	_, err = svc.ChannelProfile(ctx, "nonexistent", bob.ID)
	requireKind(t, err, apperror.KindNotFound, "channel does not exist")

	view, err := svc.ChannelProfile(ctx, "ALICE", bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", view.Username)
	assert.EqualValues(t, 2, view.SubscribersCount)
	assert.EqualValues(t, 1, view.ChannelsSubscribedToCount)
	assert.True(t, view.IsSubscribed)

	view, err = svc.ChannelProfile(ctx, "carol", bob.ID)
	require.NoError(t, err)
	assert.Zero(t, view.SubscribersCount)
	assert.False(t, view.IsSubscribed)
}

func TestProfileService_WatchHistory(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "a@x.com", "p1")

	history := []models.WatchedVideo{
		{ID: "v2", Title: "second", Owner: models.VideoOwner{Username: "bob"}},
		{ID: "v1", Title: "first", Owner: models.VideoOwner{Username: "carol"}},
	}
	svc := NewProfileService(&servicetest.Profiles{
		Users:     f.users,
		Histories: map[string][]models.WatchedVideo{alice.ID: history},
	})

	videos, err := svc.WatchHistory(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, history, videos)

	videos, err = svc.WatchHistory(context.Background(), "someone-else")
	require.NoError(t, err)
	assert.NotNil(t, videos)
	assert.Empty(t, videos)
}
