// Package servicetest holds in-memory stand-ins for the stores and hosts the
// services depend on.
package servicetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"vidtube/internal/models"
	"vidtube/internal/repository"
	"vidtube/internal/storage"
)

// PNG is the smallest payload the image sniffer accepts as a png.
var PNG = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0}, 32)...)

// Users mirrors the unique indexes and the compare-and-swap of the users table.
type Users struct {
	mu        sync.Mutex
	byID      map[string]models.User
	CreateErr error
}

func NewUsers() *Users {
	return &Users{byID: make(map[string]models.User)}
}

func (u *Users) Create(_ context.Context, user models.User) (models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.CreateErr != nil {
		return models.User{}, u.CreateErr
	}
	for _, existing := range u.byID {
		if existing.Username == user.Username || existing.Email == user.Email {
			return models.User{}, repository.ErrDuplicateUser
		}
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	u.byID[user.ID] = user
	return user, nil
}

func (u *Users) GetByID(_ context.Context, id string) (models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (u *Users) FindByLogin(_ context.Context, username, email string) (models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.byID {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (u *Users) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.byID {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (u *Users) SetRefreshToken(_ context.Context, id, token string) error {
	return u.mutate(id, func(user *models.User) error {
		user.RefreshToken = token
		return nil
	})
}

func (u *Users) RotateRefreshToken(_ context.Context, id, current, next string) error {
	return u.mutate(id, func(user *models.User) error {
		if user.RefreshToken != current {
			return repository.ErrRefreshTokenMismatch
		}
		user.RefreshToken = next
		return nil
	})
}

func (u *Users) ClearRefreshToken(_ context.Context, id string) error {
	err := u.mutate(id, func(user *models.User) error {
		user.RefreshToken = ""
		return nil
	})
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	return err
}

func (u *Users) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return u.mutate(id, func(user *models.User) error {
		user.PasswordHash = passwordHash
		return nil
	})
}

func (u *Users) UpdateAccount(_ context.Context, id, fullname, email string) (models.User, error) {
	u.mu.Lock()
	for otherID, other := range u.byID {
		if otherID != id && other.Email == email {
			u.mu.Unlock()
			return models.User{}, repository.ErrDuplicateUser
		}
	}
	u.mu.Unlock()
	return u.mutateReturning(id, func(user *models.User) {
		user.Fullname = fullname
		user.Email = email
	})
}

func (u *Users) UpdateAvatar(_ context.Context, id, url string) (models.User, error) {
	return u.mutateReturning(id, func(user *models.User) { user.Avatar = url })
}

func (u *Users) UpdateCoverImage(_ context.Context, id, url string) (models.User, error) {
	return u.mutateReturning(id, func(user *models.User) { user.CoverImage = url })
}

// Stored returns the raw record, secrets included.
func (u *Users) Stored(id string) models.User {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.byID[id]
}

func (u *Users) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.byID)
}

func (u *Users) ByUsername(username string) (models.User, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.byID {
		if user.Username == username {
			return user, true
		}
	}
	return models.User{}, false
}

func (u *Users) mutate(id string, fn func(*models.User) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if err := fn(&user); err != nil {
		return err
	}
	user.UpdatedAt = time.Now()
	u.byID[id] = user
	return nil
}

func (u *Users) mutateReturning(id string, fn func(*models.User)) (models.User, error) {
	var out models.User
	err := u.mutate(id, func(user *models.User) error {
		fn(user)
		out = *user
		return nil
	})
	return out, err
}

// Profiles answers channel and history queries from Users plus a list of
// subscriptions and per-user histories.
type Profiles struct {
	Users         *Users
	Subscriptions []Subscription
	Histories     map[string][]models.WatchedVideo
}

type Subscription struct {
	Subscriber string
	Channel    string
}

func (p *Profiles) ChannelProfile(_ context.Context, username, viewerID string) (models.ChannelProfile, error) {
	user, ok := p.Users.ByUsername(username)
	if !ok {
		return models.ChannelProfile{}, repository.ErrChannelNotFound
	}
	profile := models.ChannelProfile{
		Fullname:   user.Fullname,
		Username:   user.Username,
		Email:      user.Email,
		Avatar:     user.Avatar,
		CoverImage: user.CoverImage,
	}
	for _, s := range p.Subscriptions {
		if s.Channel == user.ID {
			profile.SubscribersCount++
			if s.Subscriber == viewerID {
				profile.IsSubscribed = true
			}
		}
		if s.Subscriber == user.ID {
			profile.ChannelsSubscribedToCount++
		}
	}
	return profile, nil
}

func (p *Profiles) WatchHistory(_ context.Context, userID string) ([]models.WatchedVideo, error) {
	videos := p.Histories[userID]
	if videos == nil {
		return []models.WatchedVideo{}, nil
	}
	return videos, nil
}

// ImageHost stores uploads in memory and hands out predictable URLs.
type ImageHost struct {
	mu   sync.Mutex
	Puts []storage.Image
	Err  error
}

func (h *ImageHost) PutImage(_ context.Context, img storage.Image) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return "", h.Err
	}
	h.Puts = append(h.Puts, img)
	return fmt.Sprintf("https://img.test/%s/%d.%s", img.Folder, len(h.Puts), img.Ext), nil
}

// Janitor records removal requests.
type Janitor struct {
	mu      sync.Mutex
	removed []string
}

func (j *Janitor) EnqueueRemoval(_ context.Context, urls ...string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, u := range urls {
		if u != "" {
			j.removed = append(j.removed, u)
		}
	}
	return nil
}

func (j *Janitor) Removed() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := append([]string(nil), j.removed...)
	sort.Strings(out)
	return out
}
