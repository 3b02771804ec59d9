package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scahts-api/internal/dto"
	"github.com/noah-isme/scahts-api/internal/models"
	"github.com/noah-isme/scahts-api/internal/service"
	"github.com/noah-isme/scahts-api/pkg/response"
)

type exportService interface {
	LeaveRegister(ctx context.Context, actor models.Actor, query dto.LeaveExportQuery) (*service.ExportFile, error)
}

// ExportHandler streams leave register downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds a new handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// LeaveRegister godoc
// @Summary Download the leave register
// @Tags Leave Review
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Param departmentId query string false "Department filter (admins only)"
// @Param status query string false "Comma separated statuses"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/leave-requests/export [get]
func (h *ExportHandler) LeaveRegister(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, err := h.service.LeaveRegister(c.Request.Context(), actor, dto.LeaveExportQuery{
		Format:       c.Query("format"),
		DepartmentID: c.Query("departmentId"),
		Status:       queryStatuses(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
