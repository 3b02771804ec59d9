package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scahts-api/internal/dto"
	"github.com/noah-isme/scahts-api/internal/models"
	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
	"github.com/noah-isme/scahts-api/pkg/export"
)

const exportPageSize = 500

type leaveLister interface {
	List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequestDetail, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService renders the leave register.
type ExportService struct {
	repo   leaveLister
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(repo leaveLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

var leaveRegisterHeaders = []string{
	"Request ID", "Student", "Roll No", "Subject", "Department", "From", "To",
	"Status", "Teacher Remarks", "HOD Remarks", "Submitted",
}

// LeaveRegister exports leave requests. HODs are restricted to their own
// department; administrators may pick any.
func (s *ExportService) LeaveRegister(ctx context.Context, actor models.Actor, query dto.LeaveExportQuery) (*ExportFile, error) {
	if err := authorize(actor, ActionLeaveExport); err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(query.Format)))
	if err != nil {
		return nil, appErrors.Validation("invalid export format", map[string]string{"format": "must be csv or pdf"})
	}
	if err := validateStatuses(query.Status); err != nil {
		return nil, err
	}

	filter := models.LeaveFilter{DepartmentID: query.DepartmentID, Status: query.Status}
	if actor.Role == models.RoleHOD {
		if actor.DepartmentID == "" {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "account is not assigned to a department")
		}
		if query.DepartmentID != "" && query.DepartmentID != actor.DepartmentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "HODs may only export their own department")
		}
		filter.DepartmentID = actor.DepartmentID
	}

	var rows []models.LeaveRequestDetail
	for offset := 0; ; offset += exportPageSize {
		filter.Limit = exportPageSize
		filter.Offset = offset
		page, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load leave register")
		}
		rows = append(rows, page...)
		if len(page) < exportPageSize {
			break
		}
	}

	now := s.now()
	dataset := export.Dataset{
		Title:   "Leave Register",
		Headers: leaveRegisterHeaders,
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, r := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Request ID":      r.ID,
			"Student":         r.StudentName,
			"Roll No":         r.RollNumber,
			"Subject":         fmt.Sprintf("%s %s", r.SubjectCode, r.SubjectName),
			"Department":      r.DepartmentName,
			"From":            r.FromDate.String(),
			"To":              r.ToDate.String(),
			"Status":          string(r.Status),
			"Teacher Remarks": actionRemarks(r.TeacherAction),
			"HOD Remarks":     actionRemarks(r.HODAction),
			"Submitted":       r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	body, err := export.Render(format, dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render leave register")
	}
	s.logger.Info("leave register exported",
		zap.String("actor_id", actor.UserID),
		zap.String("format", string(format)),
		zap.Int("rows", len(rows)),
	)
	return &ExportFile{
		Filename:    fmt.Sprintf("leave-register-%s.%s", now.Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Body:        body,
		Rows:        len(rows),
	}, nil
}

func actionRemarks(action *models.ReviewAction) string {
	if action == nil {
		return ""
	}
	return action.Remarks
}
