package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/scahts-api/internal/models"
	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
)

// Action names an operation guarded by the role policy.
type Action string

const (
	ActionLeaveApply         Action = "leave:apply"
	ActionLeaveWithdraw      Action = "leave:withdraw"
	ActionLeaveListOwn       Action = "leave:list-own"
	ActionLeaveTeacherReview Action = "leave:teacher-review"
	ActionLeaveHODReview     Action = "leave:hod-review"
	ActionLeaveListTeacher   Action = "leave:list-teacher"
	ActionLeaveListHOD       Action = "leave:list-hod"
	ActionLeaveExport        Action = "leave:export"
	ActionNotificationBulk   Action = "notification:broadcast"
)

// rolePolicy lists the actions each role may attempt. Ownership checks run
// separately once the target record is loaded.
var rolePolicy = map[models.UserRole]map[Action]bool{
	models.RoleAdmin: {
		ActionLeaveTeacherReview: true,
		ActionLeaveHODReview:     true,
		ActionLeaveListTeacher:   true,
		ActionLeaveListHOD:       true,
		ActionLeaveExport:        true,
		ActionNotificationBulk:   true,
	},
	models.RoleHOD: {
		ActionLeaveHODReview: true,
		ActionLeaveListHOD:   true,
		ActionLeaveExport:    true,
	},
	models.RoleTeacher: {
		ActionLeaveTeacherReview: true,
		ActionLeaveListTeacher:   true,
	},
	models.RoleStudent: {
		ActionLeaveApply:    true,
		ActionLeaveWithdraw: true,
		ActionLeaveListOwn:  true,
	},
}

// Allowed reports whether role may attempt action.
func Allowed(role models.UserRole, action Action) bool {
	return rolePolicy[role][action]
}

// RolesFor returns the roles permitted to attempt action, in canonical order.
func RolesFor(action Action) []models.UserRole {
	roles := make([]models.UserRole, 0, len(models.Roles))
	for _, role := range models.Roles {
		if Allowed(role, action) {
			roles = append(roles, role)
		}
	}
	return roles
}

func authorize(actor models.Actor, action Action) error {
	if !Allowed(actor.Role, action) {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not perform %s", actor.Role, action))
	}
	return nil
}

// LeaveEvent is an input to the leave state machine.
type LeaveEvent string

const (
	LeaveEventWithdraw       LeaveEvent = "withdraw"
	LeaveEventTeacherApprove LeaveEvent = "teacher-approve"
	LeaveEventTeacherReject  LeaveEvent = "teacher-reject"
	LeaveEventHODApprove     LeaveEvent = "hod-approve"
	LeaveEventHODReject      LeaveEvent = "hod-reject"
)

var leaveTransitions = map[models.LeaveStatus]map[LeaveEvent]models.LeaveStatus{
	models.LeaveStatusPendingTeacher: {
		LeaveEventWithdraw:       models.LeaveStatusWithdrawn,
		LeaveEventTeacherApprove: models.LeaveStatusPendingHOD,
		LeaveEventTeacherReject:  models.LeaveStatusRejectedByTeacher,
	},
	models.LeaveStatusPendingHOD: {
		LeaveEventWithdraw:   models.LeaveStatusWithdrawn,
		LeaveEventHODApprove: models.LeaveStatusApproved,
		LeaveEventHODReject:  models.LeaveStatusRejectedByHOD,
	},
}

// ReviewEvent maps a gate decision to its state machine event.
func ReviewEvent(gate models.LeaveGate, decision models.LeaveDecision) (LeaveEvent, error) {
	switch {
	case gate == models.LeaveGateTeacher && decision == models.LeaveDecisionApprove:
		return LeaveEventTeacherApprove, nil
	case gate == models.LeaveGateTeacher && decision == models.LeaveDecisionReject:
		return LeaveEventTeacherReject, nil
	case gate == models.LeaveGateHOD && decision == models.LeaveDecisionApprove:
		return LeaveEventHODApprove, nil
	case gate == models.LeaveGateHOD && decision == models.LeaveDecisionReject:
		return LeaveEventHODReject, nil
	}
	return "", appErrors.Validation("invalid review decision", map[string]string{"action": "must be approve or reject"})
}

// NextLeaveStatus applies event to current. Pairs missing from the table fail
// with an invalid-state error naming the current status.
func NextLeaveStatus(current models.LeaveStatus, event LeaveEvent) (models.LeaveStatus, error) {
	next, ok := leaveTransitions[current][event]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("cannot %s leave request in status %s", strings.ReplaceAll(string(event), "-", " "), current))
	}
	return next, nil
}

// validateReview checks the decision value and, for rejections, the remarks.
func validateReview(decision models.LeaveDecision, remarks string) error {
	if !decision.Valid() {
		return appErrors.Validation("invalid review decision", map[string]string{"action": "must be approve or reject"})
	}
	if decision == models.LeaveDecisionReject && strings.TrimSpace(remarks) == "" {
		return appErrors.Validation("remarks are required when rejecting", map[string]string{"remarks": "required"})
	}
	return nil
}
