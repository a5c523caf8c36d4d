package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-admin-api/internal/service"
	appErrors "github.com/noah-isme/attendance-admin-api/pkg/errors"
	"github.com/noah-isme/attendance-admin-api/pkg/export"
	"github.com/noah-isme/attendance-admin-api/pkg/response"
)

type exportService interface {
	Export(ctx context.Context, kind service.ExportKind, format export.Format) (*service.ExportFile, error)
}

// ExportHandler streams tabular exports as file downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Users godoc
// @Summary Download user roster
// @Tags Exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "xlsx (default), csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /exports/users [get]
func (h *ExportHandler) Users(c *gin.Context) {
	h.serve(c, service.ExportUserRoster)
}

// AttendanceMatrix godoc
// @Summary Download user by session attendance matrix
// @Tags Exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "xlsx (default), csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /exports/attendance-matrix [get]
func (h *ExportHandler) AttendanceMatrix(c *gin.Context) {
	h.serve(c, service.ExportAttendanceMatrix)
}

func (h *ExportHandler) serve(c *gin.Context, kind service.ExportKind) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	file, err := h.service.Export(c.Request.Context(), kind, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
