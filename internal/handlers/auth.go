package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vidtube/internal/apperror"
	"vidtube/internal/middleware"
	"vidtube/internal/models"
	"vidtube/internal/response"
	"vidtube/internal/service"
)

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	avatar, closeAvatar, err := formImage(c, "avatar")
	if err != nil {
		response.Error(c, h.log, err)
		return
	}
	defer closeAvatar()

	cover, closeCover, err := formImage(c, "coverImage")
	if err != nil {
		response.Error(c, h.log, err)
		return
	}
	defer closeCover()

	user, err := h.services.Auth.Register(c.Request.Context(), service.RegisterInput{
		Fullname:   c.PostForm("fullname"),
		Email:      c.PostForm("email"),
		Username:   c.PostForm("username"),
		Password:   c.PostForm("password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, user, "User registered successfully")
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.log, apperror.Validation("invalid request body"))
		return
	}

	session, err := h.services.Auth.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	h.setSessionCookies(c, session)
	response.Success(c, http.StatusOK, loginResponse{
		User:         session.User,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	}, "User logged in successfully")
}

// RefreshToken reads the refresh token from its cookie, falling back to the
// JSON body for clients that cannot hold cookies.
func (h HandlerSet) RefreshToken(c *gin.Context) {
	token, _ := c.Cookie(middleware.RefreshTokenCookie)
	if token == "" {
		var req refreshRequest
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}

	session, err := h.services.Auth.Refresh(c.Request.Context(), token)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	h.setSessionCookies(c, session)
	response.Success(c, http.StatusOK, tokenResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	}, "Access token refreshed")
}

func (h HandlerSet) Logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, h.log, apperror.Auth("unauthorized request"))
		return
	}

	if err := h.services.Auth.Logout(c.Request.Context(), user.ID); err != nil {
		response.Error(c, h.log, err)
		return
	}

	h.clearSessionCookies(c)
	response.Success(c, http.StatusOK, struct{}{}, "User logged out")
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, h.log, apperror.Auth("unauthorized request"))
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.log, apperror.Validation("invalid request body"))
		return
	}

	if err := h.services.Auth.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, struct{}{}, "Password changed successfully")
}
