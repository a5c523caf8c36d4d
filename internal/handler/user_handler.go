package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-admin-api/internal/middleware"
	"github.com/noah-isme/attendance-admin-api/internal/models"
	"github.com/noah-isme/attendance-admin-api/internal/service"
	appErrors "github.com/noah-isme/attendance-admin-api/pkg/errors"
	"github.com/noah-isme/attendance-admin-api/pkg/response"
)

type userService interface {
	List(ctx context.Context) ([]models.ProfileListItem, error)
	Create(ctx context.Context, req service.CreateUserRequest, actor models.Actor, meta models.RequestMeta) (*models.User, error)
	Detail(ctx context.Context, id string) (*models.UserDetail, error)
	Update(ctx context.Context, id string, req service.UpdateUserRequest, actor models.Actor, meta models.RequestMeta) (*service.UpdateUserResult, error)
	Delete(ctx context.Context, actor models.Actor, id string, meta models.RequestMeta) error
}

type statsService interface {
	PerUserStats(ctx context.Context, userID string) (*models.UserAttendanceStats, bool, error)
}

// UserHandler manages user endpoints.
type UserHandler struct {
	service userService
	stats   statsService
}

// NewUserHandler constructs a user handler.
func NewUserHandler(svc userService, stats statsService) *UserHandler {
	return &UserHandler{service: svc, stats: stats}
}

// List godoc
// @Summary List users with profiles
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// Create godoc
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid user payload"))
		return
	}
	user, err := h.service.Create(c.Request.Context(), req, actor, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Get godoc
// @Summary Get user detail with attendance stats
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	detail, err := h.service.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// Update godoc
// @Summary Update user and profile
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.UpdateUserRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}
	result, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Delete godoc
// @Summary Delete user
// @Description Permanently deletes a user. Deleting a superuser requires superuser privileges.
// @Tags Users
// @Param id path string true "User ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Per-user attendance statistics
// @Tags Analytics
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/stats [get]
func (h *UserHandler) Stats(c *gin.Context) {
	stats, cached, err := h.stats.PerUserStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, stats, middleware.ExtractMeta(c))
}
