package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidtube/internal/apperror"
	"vidtube/internal/config"
	"vidtube/internal/models"
	"vidtube/internal/repository"
	"vidtube/internal/security"
	"vidtube/internal/service/servicetest"
)

type fixture struct {
	users    *servicetest.Users
	host     *servicetest.ImageHost
	janitor  *servicetest.Janitor
	hasher   security.PasswordHasher
	tokens   *security.TokenIssuer
	auth     *AuthService
	accounts *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:   servicetest.NewUsers(),
		host:    &servicetest.ImageHost{},
		janitor: &servicetest.Janitor{},
		hasher:  security.NewPasswordHasher(4),
		tokens: security.NewTokenIssuer(config.SecurityConfig{
			AccessTokenSecret:  "access-secret",
			AccessTokenTTL:     time.Minute,
			RefreshTokenSecret: "refresh-secret",
			RefreshTokenTTL:    time.Hour,
		}),
	}
	images := NewImageUploader(f.host, f.janitor, 1<<20, zerolog.Nop())
	f.auth = NewAuthService(f.users, f.hasher, f.tokens, images, zerolog.Nop())
	f.accounts = NewAccountService(f.users, images, zerolog.Nop())
	return f
}

func pngUpload() *ImageUpload {
	return &ImageUpload{Filename: "a.png", Content: bytes.NewReader(servicetest.PNG)}
}

func (f *fixture) register(t *testing.T, username, email, password string) models.PublicUser {
	t.Helper()
	user, err := f.auth.Register(context.Background(), RegisterInput{
		Fullname: "Some One",
		Email:    email,
		Username: username,
		Password: password,
		Avatar:   pngUpload(),
	})
	require.NoError(t, err)
	return user
}

func requireKind(t *testing.T, err error, kind apperror.Kind, message string) {
	t.Helper()
	require.Error(t, err)
	appErr := apperror.From(err)
	assert.Equal(t, kind, appErr.Kind, err.Error())
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}

func TestRegister_ReturnsUserWithoutSecrets(t *testing.T) {
	f := newFixture(t)

	user := f.register(t, "  Alice ", "A@X.com", "p1")

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	assert.NotEmpty(t, user.Avatar)

	body, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "passwordHash")
	assert.NotContains(t, string(body), "refreshToken")

	stored := f.users.Stored(user.ID)
	assert.NotEqual(t, "p1", stored.PasswordHash)
	assert.True(t, f.hasher.Verify("p1", stored.PasswordHash))
	assert.Empty(t, stored.RefreshToken)
}

func TestRegister_BlankFields(t *testing.T) {
	f := newFixture(t)
	valid := RegisterInput{Fullname: "Alice A", Email: "a@x.com", Username: "alice", Password: "p1"}

	for name, mutate := range map[string]func(*RegisterInput){
		"fullname": func(in *RegisterInput) { in.Fullname = "   " },
		"email":    func(in *RegisterInput) { in.Email = "" },
		"username": func(in *RegisterInput) { in.Username = "\t" },
		"password": func(in *RegisterInput) { in.Password = " " },
	} {
		t.Run(name, func(t *testing.T) {
			in := valid
			in.Avatar = pngUpload()
			mutate(&in)
			_, err := f.auth.Register(context.Background(), in)
			requireKind(t, err, apperror.KindValidation, "All fields are required")
		})
	}
	assert.Zero(t, f.users.Count())
}

func TestRegister_DuplicateIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "a@x.com", "p1")

	for _, in := range []RegisterInput{
		{Fullname: "A", Email: "other@x.com", Username: "ALICE", Password: "p"},
		{Fullname: "A", Email: "A@X.COM", Username: "bob", Password: "p"},
	} {
		in.Avatar = pngUpload()
		_, err := f.auth.Register(context.Background(), in)
		requireKind(t, err, apperror.KindConflict, "User with email or username already exists")
	}
	assert.Equal(t, 1, f.users.Count())
}

func TestRegister_AvatarRequired(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Register(context.Background(), RegisterInput{
		Fullname: "Alice A", Email: "a@x.com", Username: "alice", Password: "p1",
	})
	requireKind(t, err, apperror.KindValidation, "Avatar file is required")
	assert.Zero(t, f.users.Count())
}

func TestRegister_UploadFailureCreatesNoUser(t *testing.T) {
	f := newFixture(t)
	f.host.Err = errors.New("image host unavailable")

	_, err := f.auth.Register(context.Background(), RegisterInput{
		Fullname: "Alice A", Email: "a@x.com", Username: "alice", Password: "p1", Avatar: pngUpload(),
	})
	requireKind(t, err, apperror.KindUpload, "")
	assert.Equal(t, 502, apperror.From(err).StatusCode())
	assert.Zero(t, f.users.Count())
}

func TestRegister_RejectsNonImages(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Register(context.Background(), RegisterInput{
		Fullname: "Alice A", Email: "a@x.com", Username: "alice", Password: "p1",
		Avatar: &ImageUpload{Filename: "a.png", Content: strings.NewReader("<svg></svg>")},
	})
	requireKind(t, err, apperror.KindValidation, "")
	assert.Empty(t, f.host.Puts)
}

func TestRegister_StoresCoverImage(t *testing.T) {
	f := newFixture(t)

	user, err := f.auth.Register(context.Background(), RegisterInput{
		Fullname: "Alice A", Email: "a@x.com", Username: "alice", Password: "p1",
		Avatar: pngUpload(), CoverImage: pngUpload(),
	})
	require.NoError(t, err)
	assert.Contains(t, user.Avatar, "/avatars/")
	assert.Contains(t, user.CoverImage, "/covers/")
}

func TestRegister_InsertRaceDiscardsUploads(t *testing.T) {
	f := newFixture(t)
	f.users.CreateErr = repository.ErrDuplicateUser

	_, err := f.auth.Register(context.Background(), RegisterInput{
		Fullname: "Alice A", Email: "a@x.com", Username: "alice", Password: "p1", Avatar: pngUpload(),
	})
	requireKind(t, err, apperror.KindConflict, "")
	assert.Len(t, f.janitor.Removed(), 1)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "alice", "a@x.com", "p1")
	ctx := context.Background()

	_, err := f.auth.Login(ctx, LoginInput{Password: "p1"})
	requireKind(t, err, apperror.KindValidation, "username or email is required")

	_, err = f.auth.Login(ctx, LoginInput{Username: "nobody", Password: "p1"})
	requireKind(t, err, apperror.KindNotFound, "User does not exist")

	_, err = f.auth.Login(ctx, LoginInput{Username: "alice", Password: "wrong"})
	requireKind(t, err, apperror.KindAuth, "Invalid Password")

	session, err := f.auth.Login(ctx, LoginInput{Email: "A@x.com", Password: "p1"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, session.User.ID)
	assert.NotEmpty(t, session.AccessToken)
	assert.Equal(t, session.RefreshToken, f.users.Stored(registered.ID).RefreshToken)

	claims, err := f.tokens.ParseAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "a@x.com", claims.Email)
}

func TestRefresh_RotatesAndRejectsReplay(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "a@x.com", "p1")
	ctx := context.Background()

	first, err := f.auth.Login(ctx, LoginInput{Username: "alice", Password: "p1"})
	require.NoError(t, err)

	second, err := f.auth.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = f.auth.Refresh(ctx, first.RefreshToken)
	requireKind(t, err, apperror.KindAuth, "Refresh token is expired or used")

	_, err = f.auth.Refresh(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_RejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "a@x.com", "p1")
	ctx := context.Background()

	session, err := f.auth.Login(ctx, LoginInput{Username: "alice", Password: "p1"})
	require.NoError(t, err)

	_, err = f.auth.Refresh(ctx, "")
	requireKind(t, err, apperror.KindAuth, "unauthorized request")

	_, err = f.auth.Refresh(ctx, "not-a-token")
	requireKind(t, err, apperror.KindAuth, "Invalid Refresh Token")

	_, err = f.auth.Refresh(ctx, session.AccessToken)
	requireKind(t, err, apperror.KindAuth, "Invalid Refresh Token")

	ghost, err := f.tokens.IssueRefreshToken(models.User{ID: "5f0c8c2e-0000-0000-0000-000000000000"})
	require.NoError(t, err)
	_, err = f.auth.Refresh(ctx, ghost)
	requireKind(t, err, apperror.KindAuth, "Invalid Refresh Token")
}

func TestRefresh_ConcurrentRotationHasOneWinner(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "a@x.com", "p1")
	ctx := context.Background()

	session, err := f.auth.Login(ctx, LoginInput{Username: "alice", Password: "p1"})
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.auth.Refresh(ctx, session.RefreshToken); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.True(t, apperror.IsKind(err, apperror.KindAuth))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "alice", "a@x.com", "p1")
	ctx := context.Background()

	session, err := f.auth.Login(ctx, LoginInput{Username: "alice", Password: "p1"})
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, user.ID))
	require.NoError(t, f.auth.Logout(ctx, user.ID))
	assert.Empty(t, f.users.Stored(user.ID).RefreshToken)

	_, err = f.auth.Refresh(ctx, session.RefreshToken)
	requireKind(t, err, apperror.KindAuth, "Refresh token is expired or used")
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "alice", "a@x.com", "p1")
	ctx := context.Background()

	err := f.auth.ChangePassword(ctx, user.ID, "wrong", "p2")
	requireKind(t, err, apperror.KindAuth, "Invalid old password")

	err = f.auth.ChangePassword(ctx, user.ID, "p1", "  ")
	requireKind(t, err, apperror.KindValidation, "old and new password are required")

	require.NoError(t, f.auth.ChangePassword(ctx, user.ID, "p1", "p2"))

	_, err = f.auth.Login(ctx, LoginInput{Username: "alice", Password: "p1"})
	requireKind(t, err, apperror.KindAuth, "Invalid Password")
	_, err = f.auth.Login(ctx, LoginInput{Username: "alice", Password: "p2"})
	assert.NoError(t, err)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "a@x.com", "p1")
	ctx := context.Background()

	session, err := f.auth.Login(ctx, LoginInput{Username: "alice", Password: "p1"})
	require.NoError(t, err)

	user, err := f.auth.Authenticate(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = f.auth.Authenticate(ctx, "")
	requireKind(t, err, apperror.KindAuth, "unauthorized request")

	_, err = f.auth.Authenticate(ctx, session.RefreshToken)
	requireKind(t, err, apperror.KindAuth, "Invalid Access Token")

	ghost, err := f.tokens.IssueAccessToken(models.User{ID: "5f0c8c2e-0000-0000-0000-000000000000"})
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, ghost)
	requireKind(t, err, apperror.KindAuth, "Invalid Access Token")
}

func TestRegister_OverlongPasswordUploadsNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Register(context.Background(), RegisterInput{
		Fullname: "Alice A", Email: "a@x.com", Username: "alice",
		Password:   strings.Repeat("p", security.MaxPasswordBytes+1),
		Avatar:     pngUpload(),
		CoverImage: pngUpload(),
	})
	requireKind(t, err, apperror.KindValidation, "password must not exceed 72 bytes")
	assert.Equal(t, 400, apperror.From(err).StatusCode())
	assert.Empty(t, f.host.Puts)
	assert.Zero(t, f.users.Count())
}

func TestChangePassword_OverlongNewPassword(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "alice", "a@x.com", "p1")
	before := f.users.Stored(user.ID).PasswordHash

	err := f.auth.ChangePassword(context.Background(), user.ID, "p1", strings.Repeat("p", security.MaxPasswordBytes+1))
	requireKind(t, err, apperror.KindValidation, "password must not exceed 72 bytes")
	assert.Equal(t, before, f.users.Stored(user.ID).PasswordHash)
}
