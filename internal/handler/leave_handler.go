package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scahts-api/internal/dto"
	"github.com/noah-isme/scahts-api/internal/middleware"
	"github.com/noah-isme/scahts-api/internal/models"
	"github.com/noah-isme/scahts-api/pkg/response"
)

type leaveService interface {
	Apply(ctx context.Context, actor models.Actor, req dto.ApplyLeaveRequest) (*models.LeaveRequestDetail, error)
	Withdraw(ctx context.Context, actor models.Actor, id string) (*models.LeaveRequestDetail, error)
	Act(ctx context.Context, gate models.LeaveGate, actor models.Actor, id string, req dto.ReviewLeaveRequest) (*models.LeaveRequestDetail, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.LeaveRequestDetail, error)
	ListMine(ctx context.Context, actor models.Actor, query dto.LeaveListQuery) (*dto.LeaveListResult, error)
	ListPendingForTeacher(ctx context.Context, actor models.Actor) ([]models.LeaveRequestDetail, bool, error)
	ListPendingForHOD(ctx context.Context, actor models.Actor) ([]models.LeaveRequestDetail, bool, error)
}

// LeaveHandler exposes the leave workflow for students and reviewers.
type LeaveHandler struct {
	service leaveService
}

// NewLeaveHandler builds a new handler.
func NewLeaveHandler(service leaveService) *LeaveHandler {
	return &LeaveHandler{service: service}
}

// Apply godoc
// @Summary Submit a leave request
// @Tags Leave
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ApplyLeaveRequest true "Leave request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leave/apply [post]
func (h *LeaveHandler) Apply(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ApplyLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid leave request payload"))
		return
	}
	leave, err := h.service.Apply(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, leave)
}

// MyRequests godoc
// @Summary List the caller's leave requests
// @Tags Leave
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /leave/my-requests [get]
func (h *LeaveHandler) MyRequests(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	page, err := queryInt(c, "page")
	if err != nil {
		response.Error(c, err)
		return
	}
	size, err := queryInt(c, "pageSize")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.ListMine(c.Request.Context(), actor, dto.LeaveListQuery{
		Status:   queryStatuses(c),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Items, &response.Pagination{
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.Total,
	})
}

// Get godoc
// @Summary Get a leave request
// @Tags Leave
// @Produce json
// @Security BearerAuth
// @Param id path string true "Leave request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leave/{id} [get]
func (h *LeaveHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	leave, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// Withdraw godoc
// @Summary Withdraw a pending leave request
// @Tags Leave
// @Produce json
// @Security BearerAuth
// @Param id path string true "Leave request ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leave/{id}/withdraw [put]
func (h *LeaveHandler) Withdraw(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	leave, err := h.service.Withdraw(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// TeacherPending godoc
// @Summary List requests awaiting teacher review
// @Tags Leave Review
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /teacher/leave-requests [get]
func (h *LeaveHandler) TeacherPending(c *gin.Context) {
	h.pending(c, h.service.ListPendingForTeacher)
}

// TeacherAct godoc
// @Summary Approve or reject at the teacher gate
// @Tags Leave Review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Leave request ID"
// @Param payload body dto.ReviewLeaveRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teacher/leave-requests/{id}/action [put]
func (h *LeaveHandler) TeacherAct(c *gin.Context) {
	h.act(c, models.LeaveGateTeacher)
}

// HODPending godoc
// @Summary List requests awaiting HOD review
// @Tags Leave Review
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /hod/leave-requests [get]
func (h *LeaveHandler) HODPending(c *gin.Context) {
	h.pending(c, h.service.ListPendingForHOD)
}

// HODAct godoc
// @Summary Approve or reject at the HOD gate
// @Tags Leave Review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Leave request ID"
// @Param payload body dto.ReviewLeaveRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /hod/leave-requests/{id}/action [put]
func (h *LeaveHandler) HODAct(c *gin.Context) {
	h.act(c, models.LeaveGateHOD)
}

func (h *LeaveHandler) pending(c *gin.Context, list func(context.Context, models.Actor) ([]models.LeaveRequestDetail, bool, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, hit, err := list(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, items, nil, middleware.Meta(c))
}

func (h *LeaveHandler) act(c *gin.Context, gate models.LeaveGate) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ReviewLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid review payload"))
		return
	}
	req.Action = models.LeaveDecision(strings.ToLower(strings.TrimSpace(string(req.Action))))
	leave, err := h.service.Act(c.Request.Context(), gate, actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}
