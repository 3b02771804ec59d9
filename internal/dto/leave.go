package dto

import "github.com/noah-isme/scahts-api/internal/models"

// ApplyLeaveRequest is the student payload for a new leave request.
type ApplyLeaveRequest struct {
	SubjectID      string   `json:"subjectId" validate:"required"`
	Reason         string   `json:"reason" validate:"required,max=2000"`
	FromDate       string   `json:"fromDate" validate:"required,datetime=2006-01-02"`
	ToDate         string   `json:"toDate" validate:"required,datetime=2006-01-02"`
	SupportingDocs []string `json:"supportingDocs" validate:"omitempty,max=10,dive,url"`
}

// ReviewLeaveRequest carries a teacher or HOD decision.
type ReviewLeaveRequest struct {
	Action  models.LeaveDecision `json:"action"`
	Remarks string               `json:"remarks"`
}

// LeaveListQuery mirrors the supported listing filters.
type LeaveListQuery struct {
	Status   []models.LeaveStatus
	Page     int
	PageSize int
}

// LeaveExportQuery selects the rows and format of a register export.
type LeaveExportQuery struct {
	Format       string
	DepartmentID string
	Status       []models.LeaveStatus
}

// LeaveListResult is a page of leave requests.
type LeaveListResult struct {
	Items    []models.LeaveRequestDetail `json:"items"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"pageSize"`
	Total    int                         `json:"total"`
}
