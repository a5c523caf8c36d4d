package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-admin-api/internal/models"
	"github.com/noah-isme/attendance-admin-api/internal/service"
	appErrors "github.com/noah-isme/attendance-admin-api/pkg/errors"
	"github.com/noah-isme/attendance-admin-api/pkg/response"
)

type sessionService interface {
	Create(ctx context.Context, req service.CreateSessionRequest, actor models.Actor, meta models.RequestMeta) (*models.CreateSessionResult, error)
	Mark(ctx context.Context, sessionID string, req service.MarkAttendanceRequest) (*models.Attendance, error)
	Close(ctx context.Context, sessionID string, actor models.Actor, meta models.RequestMeta) (*models.CloseResult, error)
	ListWithSummary(ctx context.Context) ([]models.SessionSummary, error)
	Detail(ctx context.Context, sessionID string) (*models.SessionDetail, error)
	CreateForm(ctx context.Context) (*models.SessionForm, error)
}

// SessionHandler exposes the attendance session lifecycle.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(svc sessionService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// List godoc
// @Summary List attendance sessions
// @Description Sessions newest first with target, present, late, absent and unmarked counts
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	summaries, err := h.service.ListWithSummary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, map[string]interface{}{"total": len(summaries)})
}

// Form godoc
// @Summary Session creation form data
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sessions/form [get]
func (h *SessionHandler) Form(c *gin.Context) {
	form, err := h.service.CreateForm(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form)
}

// Create godoc
// @Summary Open an attendance session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	result, err := h.service.Create(c.Request.Context(), req, actor, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Get godoc
// @Summary Attendance session detail
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	detail, err := h.service.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// Mark godoc
// @Summary Mark a target present, late or absent
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.MarkAttendanceRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/marks [post]
func (h *SessionHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid mark payload"))
		return
	}
	attendance, err := h.service.Mark(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attendance)
}

// Close godoc
// @Summary Close an attendance session
// @Description Records every unmarked target as absent and ends the session. Repeated calls report already_closed.
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/close [post]
func (h *SessionHandler) Close(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Close(c.Request.Context(), c.Param("id"), actor, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
