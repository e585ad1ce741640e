package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vidtube/internal/apperror"
	"vidtube/internal/middleware"
	"vidtube/internal/models"
	"vidtube/internal/response"
	"vidtube/internal/service"
)

type updateAccountRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

func (h HandlerSet) CurrentUser(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, h.log, apperror.Auth("unauthorized request"))
		return
	}
	response.Success(c, http.StatusOK, user, "Current user fetched successfully")
}

func (h HandlerSet) UpdateAccount(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, h.log, apperror.Auth("unauthorized request"))
		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.log, apperror.Validation("invalid request body"))
		return
	}

	updated, err := h.services.Accounts.UpdateAccount(c.Request.Context(), user.ID, req.Fullname, req.Email)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, updated, "Account details updated successfully")
}

func (h HandlerSet) UpdateAvatar(c *gin.Context) {
	h.updateImage(c, "avatar", h.services.Accounts.UpdateAvatar, "Avatar image updated successfully")
}

func (h HandlerSet) UpdateCoverImage(c *gin.Context) {
	h.updateImage(c, "coverImage", h.services.Accounts.UpdateCoverImage, "Cover image updated successfully")
}

func (h HandlerSet) updateImage(
	c *gin.Context,
	field string,
	update func(ctx context.Context, userID string, upload *service.ImageUpload) (models.PublicUser, error),
	message string,
) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, h.log, apperror.Auth("unauthorized request"))
		return
	}

	upload, closeFile, err := formImage(c, field)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}
	defer closeFile()

	updated, err := update(c.Request.Context(), user.ID, upload)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, updated, message)
}

func (h HandlerSet) ChannelProfile(c *gin.Context) {
	viewer, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, h.log, apperror.Auth("unauthorized request"))
		return
	}

	profile, err := h.services.Profiles.ChannelProfile(c.Request.Context(), c.Param("username"), viewer.ID)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, profile, "User channel fetched successfully")
}

func (h HandlerSet) WatchHistory(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, h.log, apperror.Auth("unauthorized request"))
		return
	}

	videos, err := h.services.Profiles.WatchHistory(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, videos, "Watch history fetched successfully")
}

// formImage opens an optional multipart file field. The returned close func
// is always safe to call.
func formImage(c *gin.Context, field string) (*service.ImageUpload, func(), error) {
	noop := func() {}

	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, apperror.Validation("invalid multipart form")
	}

	file, err := header.Open()
	if err != nil {
		return nil, noop, apperror.Validation("could not read uploaded file")
	}
	return &service.ImageUpload{Filename: header.Filename, Content: file}, func() { _ = file.Close() }, nil
}
