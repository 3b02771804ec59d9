package models

import "time"

// LeaveStatus is the workflow state of a leave request.
type LeaveStatus string

const (
	LeaveStatusPendingTeacher    LeaveStatus = "PENDING_TEACHER"
	LeaveStatusPendingHOD        LeaveStatus = "PENDING_HOD"
	LeaveStatusApproved          LeaveStatus = "APPROVED"
	LeaveStatusRejectedByTeacher LeaveStatus = "REJECTED_BY_TEACHER"
	LeaveStatusRejectedByHOD     LeaveStatus = "REJECTED_BY_HOD"
	LeaveStatusWithdrawn         LeaveStatus = "WITHDRAWN"
)

// Valid reports whether s is one of the six workflow states.
func (s LeaveStatus) Valid() bool {
	switch s {
	case LeaveStatusPendingTeacher, LeaveStatusPendingHOD, LeaveStatusApproved,
		LeaveStatusRejectedByTeacher, LeaveStatusRejectedByHOD, LeaveStatusWithdrawn:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s LeaveStatus) IsTerminal() bool {
	switch s {
	case LeaveStatusApproved, LeaveStatusRejectedByTeacher, LeaveStatusRejectedByHOD, LeaveStatusWithdrawn:
		return true
	}
	return false
}

// LeaveDecision is a reviewer's verdict at a gate.
type LeaveDecision string

const (
	LeaveDecisionApprove LeaveDecision = "approve"
	LeaveDecisionReject  LeaveDecision = "reject"
)

// Valid reports whether d is approve or reject.
func (d LeaveDecision) Valid() bool {
	return d == LeaveDecisionApprove || d == LeaveDecisionReject
}

// LeaveGate identifies the review stage acting on a request.
type LeaveGate string

const (
	LeaveGateTeacher LeaveGate = "teacher"
	LeaveGateHOD     LeaveGate = "hod"
)

// ReviewAction records who acted at a gate, when, and what they said.
type ReviewAction struct {
	ActorID  string        `json:"actorId"`
	At       time.Time     `json:"at"`
	Remarks  string        `json:"remarks,omitempty"`
	Decision LeaveDecision `json:"decision"`
}

// LeaveRequest is a student's request to be excused from a subject.
type LeaveRequest struct {
	ID             string        `json:"id"`
	StudentID      string        `json:"studentId"`
	SubjectID      string        `json:"subjectId"`
	DepartmentID   string        `json:"departmentId"`
	Reason         string        `json:"reason"`
	FromDate       Date          `json:"fromDate"`
	ToDate         Date          `json:"toDate"`
	SupportingDocs []string      `json:"supportingDocs"`
	Status         LeaveStatus   `json:"status"`
	TeacherAction  *ReviewAction `json:"teacherAction,omitempty"`
	HODAction      *ReviewAction `json:"hodAction,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// LeaveRequestDetail enriches a request with display names.
type LeaveRequestDetail struct {
	LeaveRequest
	StudentName    string `json:"studentName"`
	StudentUserID  string `json:"studentUserId"`
	RollNumber     string `json:"rollNumber"`
	SubjectCode    string `json:"subjectCode"`
	SubjectName    string `json:"subjectName"`
	DepartmentName string `json:"departmentName"`
}

// LeaveFilter constrains leave listing queries.
type LeaveFilter struct {
	StudentID    string
	TeacherID    string
	DepartmentID string
	Status       []LeaveStatus
	Limit        int
	Offset       int
}
