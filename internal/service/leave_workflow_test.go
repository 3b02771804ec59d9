package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scahts-api/internal/models"
	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
)

var allLeaveStatuses = []models.LeaveStatus{
	models.LeaveStatusPendingTeacher,
	models.LeaveStatusPendingHOD,
	models.LeaveStatusApproved,
	models.LeaveStatusRejectedByTeacher,
	models.LeaveStatusRejectedByHOD,
	models.LeaveStatusWithdrawn,
}

var allLeaveEvents = []LeaveEvent{
	LeaveEventWithdraw,
	LeaveEventTeacherApprove,
	LeaveEventTeacherReject,
	LeaveEventHODApprove,
	LeaveEventHODReject,
}

func TestNextLeaveStatusOnlyReachableEdges(t *testing.T) {
	type edge struct {
		from  models.LeaveStatus
		event LeaveEvent
	}
	legal := map[edge]models.LeaveStatus{
		{models.LeaveStatusPendingTeacher, LeaveEventWithdraw}:       models.LeaveStatusWithdrawn,
		{models.LeaveStatusPendingHOD, LeaveEventWithdraw}:           models.LeaveStatusWithdrawn,
		{models.LeaveStatusPendingTeacher, LeaveEventTeacherApprove}: models.LeaveStatusPendingHOD,
		{models.LeaveStatusPendingTeacher, LeaveEventTeacherReject}:  models.LeaveStatusRejectedByTeacher,
		{models.LeaveStatusPendingHOD, LeaveEventHODApprove}:         models.LeaveStatusApproved,
		{models.LeaveStatusPendingHOD, LeaveEventHODReject}:          models.LeaveStatusRejectedByHOD,
	}

	for _, status := range allLeaveStatuses {
		for _, event := range allLeaveEvents {
			next, err := NextLeaveStatus(status, event)
			want, ok := legal[edge{status, event}]
			if ok {
				require.NoError(t, err, "%s --%s-->", status, event)
				assert.Equal(t, want, next)
				continue
			}
			require.Error(t, err, "%s --%s--> should be rejected", status, event)
			assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
			assert.Contains(t, err.Error(), string(status))
			assert.Empty(t, next)
		}
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, status := range allLeaveStatuses {
		if !status.IsTerminal() {
			continue
		}
		for _, event := range allLeaveEvents {
			_, err := NextLeaveStatus(status, event)
			assert.Error(t, err)
		}
	}
}

func TestReviewEvent(t *testing.T) {
	event, err := ReviewEvent(models.LeaveGateTeacher, models.LeaveDecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, LeaveEventTeacherApprove, event)

	event, err = ReviewEvent(models.LeaveGateHOD, models.LeaveDecisionReject)
	require.NoError(t, err)
	assert.Equal(t, LeaveEventHODReject, event)

	_, err = ReviewEvent(models.LeaveGateHOD, models.LeaveDecision("escalate"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestValidateReviewRequiresRemarksOnReject(t *testing.T) {
	assert.NoError(t, validateReview(models.LeaveDecisionApprove, ""))
	assert.NoError(t, validateReview(models.LeaveDecisionReject, "not enough detail"))

	err := validateReview(models.LeaveDecisionReject, "   ")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "required", appErr.Errors["remarks"])

	assert.Error(t, validateReview(models.LeaveDecision(""), "x"))
}

func TestRolePolicy(t *testing.T) {
	assert.True(t, Allowed(models.RoleStudent, ActionLeaveApply))
	assert.False(t, Allowed(models.RoleStudent, ActionLeaveTeacherReview))
	assert.False(t, Allowed(models.RoleTeacher, ActionLeaveHODReview))
	assert.False(t, Allowed(models.RoleHOD, ActionLeaveTeacherReview))
	assert.True(t, Allowed(models.RoleAdmin, ActionLeaveTeacherReview))
	assert.True(t, Allowed(models.RoleAdmin, ActionLeaveHODReview))
	assert.False(t, Allowed(models.UserRole("GUEST"), ActionLeaveListOwn))

	assert.Equal(t, []models.UserRole{models.RoleAdmin, models.RoleHOD}, RolesFor(ActionLeaveExport))
	assert.Equal(t, []models.UserRole{models.RoleAdmin, models.RoleTeacher}, RolesFor(ActionLeaveListTeacher))
	assert.Equal(t, []models.UserRole{models.RoleStudent}, RolesFor(ActionLeaveWithdraw))
}
