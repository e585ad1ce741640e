package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"vidtube/internal/models"
)

var ErrChannelNotFound = errors.New("channel not found")

// ProfileRepository answers the read-only joins across users, subscriptions
// and videos.
type ProfileRepository struct {
	db DB
}

func NewProfileRepository(db DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	const query = `
		SELECT u.fullname, u.username, u.email, u.avatar, COALESCE(u.cover_image, ''),
		       (SELECT COUNT(*) FROM subscriptions s WHERE s.channel = u.id),
		       (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber = u.id),
		       EXISTS (
		           SELECT 1 FROM subscriptions s
		           WHERE s.channel = u.id AND s.subscriber::text = $2
		       )
		FROM users u
		WHERE u.username = $1
	`

	var profile models.ChannelProfile
	err := r.db.QueryRow(ctx, query, username, viewerID).Scan(
		&profile.Fullname,
		&profile.Username,
		&profile.Email,
		&profile.Avatar,
		&profile.CoverImage,
		&profile.SubscribersCount,
		&profile.ChannelsSubscribedToCount,
		&profile.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChannelProfile{}, ErrChannelNotFound
		}
		return models.ChannelProfile{}, fmt.Errorf("channel profile: %w", err)
	}
	return profile, nil
}

// WatchHistory resolves the user's watch history in stored order, each video
// joined with its owner's public fields. Ids pointing at deleted videos are
// skipped.
func (r *ProfileRepository) WatchHistory(ctx context.Context, userID string) ([]models.WatchedVideo, error) {
	const query = `
		SELECT v.id::text, v.title, v.description, v.thumbnail, v.video_file, v.duration, v.views, v.created_at,
		       o.fullname, o.username, o.avatar
		FROM users u
		CROSS JOIN LATERAL unnest(u.watch_history) WITH ORDINALITY AS h(video_id, ord)
		JOIN videos v ON v.id = h.video_id
		JOIN users o ON o.id = v.owner
		WHERE u.id = $1
		ORDER BY h.ord
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("watch history: %w", err)
	}
	defer rows.Close()

	videos := make([]models.WatchedVideo, 0)
	for rows.Next() {
		var v models.WatchedVideo
		if err := rows.Scan(
			&v.ID,
			&v.Title,
			&v.Description,
			&v.Thumbnail,
			&v.VideoFile,
			&v.Duration,
			&v.Views,
			&v.CreatedAt,
			&v.Owner.Fullname,
			&v.Owner.Username,
			&v.Owner.Avatar,
		); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
