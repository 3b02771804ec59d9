package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/scahts-api/internal/dto"
	"github.com/noah-isme/scahts-api/internal/models"
	"github.com/noah-isme/scahts-api/internal/repository"
	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
)

const (
	leavePendingLimit  = 500
	leaveNotifyDateFmt = "02 Jan 2006"
)

type leaveStore interface {
	Create(ctx context.Context, req *models.LeaveRequest) error
	GetDetail(ctx context.Context, id string) (*models.LeaveRequestDetail, error)
	List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequestDetail, error)
	Count(ctx context.Context, filter models.LeaveFilter) (int, error)
	UpdateTransition(ctx context.Context, params repository.LeaveTransitionParams) error
}

type academicDirectory interface {
	FindStudentByUserID(ctx context.Context, userID string) (*models.Student, error)
	FindSubjectByID(ctx context.Context, id string) (*models.Subject, error)
	ListHODIDs(ctx context.Context, departmentID string) ([]string, error)
}

type leaveNotifier interface {
	Dispatch(ctx context.Context, batch NotificationBatch)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// LeaveServiceOption configures the service.
type LeaveServiceOption func(*LeaveService)

// WithLeaveNotifier sets the notification dispatcher.
func WithLeaveNotifier(n leaveNotifier) LeaveServiceOption {
	return func(s *LeaveService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLeaveCache enables pending-list caching.
func WithLeaveCache(cache *PendingQueueCache) LeaveServiceOption {
	return func(s *LeaveService) {
		s.cache = cache
	}
}

// WithLeaveMetrics attaches transition counters.
func WithLeaveMetrics(metrics *MetricsService) LeaveServiceOption {
	return func(s *LeaveService) {
		s.metrics = metrics
	}
}

// WithLeaveClock overrides the time source.
func WithLeaveClock(now func() time.Time) LeaveServiceOption {
	return func(s *LeaveService) {
		if now != nil {
			s.now = now
		}
	}
}

type noopNotifier struct{}

func (noopNotifier) Dispatch(context.Context, NotificationBatch) {}

// LeaveService runs the leave approval workflow.
type LeaveService struct {
	repo      leaveStore
	academic  academicDirectory
	audit     auditLogger
	notifier  leaveNotifier
	cache     *PendingQueueCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewLeaveService constructs the service with defaults.
func NewLeaveService(repo leaveStore, academic academicDirectory, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...LeaveServiceOption) *LeaveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	svc := &LeaveService{
		repo:      repo,
		academic:  academic,
		audit:     audit,
		notifier:  noopNotifier{},
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Apply records a new request in PENDING_TEACHER. No notification is sent.
func (s *LeaveService) Apply(ctx context.Context, actor models.Actor, req dto.ApplyLeaveRequest) (*models.LeaveRequestDetail, error) {
	if err := authorize(actor, ActionLeaveApply); err != nil {
		return nil, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid leave request")
	}
	from, err := models.ParseDate(req.FromDate)
	if err != nil {
		return nil, appErrors.Validation("invalid leave request", map[string]string{"fromDate": "must be a date in YYYY-MM-DD format"})
	}
	to, err := models.ParseDate(req.ToDate)
	if err != nil {
		return nil, appErrors.Validation("invalid leave request", map[string]string{"toDate": "must be a date in YYYY-MM-DD format"})
	}
	if to.Before(from.Time) {
		return nil, appErrors.Validation("toDate must not be before fromDate", map[string]string{"toDate": "must be on or after fromDate"})
	}

	student, err := s.academic.FindStudentByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Internal(err, "failed to load student profile")
	}
	subject, err := s.academic.FindSubjectByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Internal(err, "failed to load subject")
	}
	if subject.DepartmentID != student.DepartmentID || subject.Semester != student.Semester {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found for your department and semester")
	}

	docs := make([]string, 0, len(req.SupportingDocs))
	for _, doc := range req.SupportingDocs {
		if trimmed := strings.TrimSpace(doc); trimmed != "" {
			docs = append(docs, trimmed)
		}
	}
	leave := &models.LeaveRequest{
		StudentID:      student.ID,
		SubjectID:      subject.ID,
		DepartmentID:   subject.DepartmentID,
		Reason:         req.Reason,
		FromDate:       from,
		ToDate:         to,
		SupportingDocs: docs,
		Status:         models.LeaveStatusPendingTeacher,
		CreatedAt:      s.now(),
	}
	if err := s.repo.Create(ctx, leave); err != nil {
		return nil, appErrors.Internal(err, "failed to create leave request")
	}

	s.cache.Flush(ctx)
	s.emitAudit(ctx, actor, models.AuditActionLeaveApply, leave.ID, "", leave.Status)

	return &models.LeaveRequestDetail{
		LeaveRequest:  *leave,
		StudentName:   student.FullName,
		StudentUserID: student.UserID,
		RollNumber:    student.RollNumber,
		SubjectCode:   subject.Code,
		SubjectName:   subject.Name,
	}, nil
}

// Withdraw cancels a pending request on behalf of its owner.
func (s *LeaveService) Withdraw(ctx context.Context, actor models.Actor, id string) (*models.LeaveRequestDetail, error) {
	if err := authorize(actor, ActionLeaveWithdraw); err != nil {
		return nil, err
	}
	leave, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if leave.StudentUserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requesting student may withdraw this leave request")
	}
	next, err := NextLeaveStatus(leave.Status, LeaveEventWithdraw)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.persistTransition(ctx, repository.LeaveTransitionParams{ID: leave.ID, Status: next, UpdatedAt: now}); err != nil {
		return nil, err
	}
	previous := leave.Status
	leave.Status = next
	leave.UpdatedAt = now

	s.afterTransition(ctx, actor, models.AuditActionLeaveWithdraw, leave.ID, previous, next)
	return leave, nil
}

// Act applies a teacher or HOD decision at gate.
func (s *LeaveService) Act(ctx context.Context, gate models.LeaveGate, actor models.Actor, id string, req dto.ReviewLeaveRequest) (*models.LeaveRequestDetail, error) {
	if err := validateReview(req.Action, req.Remarks); err != nil {
		return nil, err
	}
	event, err := ReviewEvent(gate, req.Action)
	if err != nil {
		return nil, err
	}
	action := ActionLeaveTeacherReview
	if gate == models.LeaveGateHOD {
		action = ActionLeaveHODReview
	}
	if err := authorize(actor, action); err != nil {
		return nil, err
	}

	leave, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkGateOwnership(ctx, gate, actor, leave); err != nil {
		return nil, err
	}
	next, err := NextLeaveStatus(leave.Status, event)
	if err != nil {
		return nil, err
	}

	now := s.now()
	review := &models.ReviewAction{
		ActorID:  actor.UserID,
		At:       now,
		Remarks:  strings.TrimSpace(req.Remarks),
		Decision: req.Action,
	}
	if err := s.persistTransition(ctx, repository.LeaveTransitionParams{
		ID:        leave.ID,
		Status:    next,
		Gate:      gate,
		Action:    review,
		UpdatedAt: now,
	}); err != nil {
		return nil, err
	}
	previous := leave.Status
	leave.Status = next
	leave.UpdatedAt = now
	if gate == models.LeaveGateTeacher {
		leave.TeacherAction = review
	} else {
		leave.HODAction = review
	}

	s.afterTransition(ctx, actor, models.AuditActionLeaveReview, leave.ID, previous, next)
	s.notifier.Dispatch(ctx, s.reviewNotifications(ctx, actor, leave, event))
	return leave, nil
}

// Get returns one request if the caller may see it.
func (s *LeaveService) Get(ctx context.Context, actor models.Actor, id string) (*models.LeaveRequestDetail, error) {
	leave, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleAdmin:
		return leave, nil
	case models.RoleStudent:
		if leave.StudentUserID == actor.UserID {
			return leave, nil
		}
	case models.RoleHOD:
		if actor.DepartmentID != "" && actor.DepartmentID == leave.DepartmentID {
			return leave, nil
		}
	case models.RoleTeacher:
		subject, err := s.academic.FindSubjectByID(ctx, leave.SubjectID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to load subject")
		}
		if subject.TaughtBy(actor.UserID) {
			return leave, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "you may not view this leave request")
}

// ListMine returns the caller's own requests, newest first.
func (s *LeaveService) ListMine(ctx context.Context, actor models.Actor, query dto.LeaveListQuery) (*dto.LeaveListResult, error) {
	if err := authorize(actor, ActionLeaveListOwn); err != nil {
		return nil, err
	}
	if err := validateStatuses(query.Status); err != nil {
		return nil, err
	}
	student, err := s.academic.FindStudentByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Internal(err, "failed to load student profile")
	}

	page, size := normalizePage(query.Page, query.PageSize, 20, 100)
	filter := models.LeaveFilter{StudentID: student.ID, Status: query.Status, Limit: size, Offset: (page - 1) * size}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list leave requests")
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count leave requests")
	}
	if items == nil {
		items = []models.LeaveRequestDetail{}
	}
	return &dto.LeaveListResult{Items: items, Page: page, PageSize: size, Total: total}, nil
}

// ListPendingForTeacher returns requests awaiting the caller at the teacher
// gate. The boolean reports a cache hit.
func (s *LeaveService) ListPendingForTeacher(ctx context.Context, actor models.Actor) ([]models.LeaveRequestDetail, bool, error) {
	if err := authorize(actor, ActionLeaveListTeacher); err != nil {
		return nil, false, err
	}
	filter := models.LeaveFilter{Status: []models.LeaveStatus{models.LeaveStatusPendingTeacher}, Limit: leavePendingLimit}
	scope := "all"
	if actor.Role != models.RoleAdmin {
		filter.TeacherID = actor.UserID
		scope = actor.UserID
	}
	return s.listPending(ctx, models.LeaveGateTeacher, scope, filter)
}

// ListPendingForHOD returns requests awaiting the caller's department at the
// HOD gate. The boolean reports a cache hit.
func (s *LeaveService) ListPendingForHOD(ctx context.Context, actor models.Actor) ([]models.LeaveRequestDetail, bool, error) {
	if err := authorize(actor, ActionLeaveListHOD); err != nil {
		return nil, false, err
	}
	filter := models.LeaveFilter{Status: []models.LeaveStatus{models.LeaveStatusPendingHOD}, Limit: leavePendingLimit}
	scope := "all"
	if actor.Role != models.RoleAdmin {
		if actor.DepartmentID == "" {
			return nil, false, appErrors.Clone(appErrors.ErrForbidden, "account is not assigned to a department")
		}
		filter.DepartmentID = actor.DepartmentID
		scope = actor.DepartmentID
	}
	return s.listPending(ctx, models.LeaveGateHOD, scope, filter)
}

func (s *LeaveService) listPending(ctx context.Context, gate models.LeaveGate, scope string, filter models.LeaveFilter) ([]models.LeaveRequestDetail, bool, error) {
	if cached, hit := s.cache.Lookup(ctx, gate, scope); hit {
		return cached, true, nil
	}
	gen := s.cache.Generation()

	start := time.Now()
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to list pending leave requests")
	}
	s.metrics.ObserveDBQuery("leave_pending", time.Since(start))
	if items == nil {
		items = []models.LeaveRequestDetail{}
	}
	s.cache.Store(ctx, gate, scope, gen, items)
	return items, false, nil
}

func (s *LeaveService) load(ctx context.Context, id string) (*models.LeaveRequestDetail, error) {
	leave, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, appErrors.Internal(err, "failed to load leave request")
	}
	return leave, nil
}

func (s *LeaveService) checkGateOwnership(ctx context.Context, gate models.LeaveGate, actor models.Actor, leave *models.LeaveRequestDetail) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	switch gate {
	case models.LeaveGateTeacher:
		subject, err := s.academic.FindSubjectByID(ctx, leave.SubjectID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrForbidden, "you are not assigned to this subject")
			}
			return appErrors.Internal(err, "failed to load subject")
		}
		if !subject.TaughtBy(actor.UserID) {
			return appErrors.Clone(appErrors.ErrForbidden, "you are not assigned to this subject")
		}
	case models.LeaveGateHOD:
		if actor.DepartmentID == "" || actor.DepartmentID != leave.DepartmentID {
			return appErrors.Clone(appErrors.ErrForbidden, "you are not the HOD of this department")
		}
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "unknown review gate")
	}
	return nil
}

func (s *LeaveService) persistTransition(ctx context.Context, params repository.LeaveTransitionParams) error {
	if err := s.repo.UpdateTransition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return appErrors.Internal(err, "failed to update leave request")
	}
	return nil
}

func (s *LeaveService) afterTransition(ctx context.Context, actor models.Actor, auditAction, id string, from, to models.LeaveStatus) {
	s.metrics.RecordLeaveTransition(from, to)
	s.cache.Flush(ctx)
	s.emitAudit(ctx, actor, auditAction, id, from, to)
	s.logger.Info("leave request transitioned",
		zap.String("leave_id", id),
		zap.String("actor_id", actor.UserID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

func (s *LeaveService) emitAudit(ctx context.Context, actor models.Actor, action, id string, from, to models.LeaveStatus) {
	if s.audit == nil {
		return
	}
	userID := actor.UserID
	resourceID := id
	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "leave_request",
		ResourceID: &resourceID,
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, to)),
		IPAddress:  "system",
		UserAgent:  "leave-service",
	}
	if from != "" {
		entry.OldValues = []byte(fmt.Sprintf(`{"status":%q}`, from))
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// reviewNotifications builds the batch for a gate decision. Teacher approval
// also fans out to every HOD of the department.
func (s *LeaveService) reviewNotifications(ctx context.Context, actor models.Actor, leave *models.LeaveRequestDetail, event LeaveEvent) NotificationBatch {
	batch := NotificationBatch{Source: "leave:" + leave.ID}
	dates := formatLeaveDates(leave.FromDate, leave.ToDate)
	link := "/leave/" + leave.ID

	var title, body string
	switch event {
	case LeaveEventTeacherApprove:
		title = "Leave Approved by Teacher"
		body = fmt.Sprintf("Your leave request for %s (%s) was approved by your teacher and forwarded to the HOD.", leave.SubjectName, dates)
	case LeaveEventTeacherReject:
		title = "Leave Rejected by Teacher"
		body = fmt.Sprintf("Your leave request for %s (%s) was rejected by your teacher.", leave.SubjectName, dates)
	case LeaveEventHODApprove:
		title = "Leave Approved"
		body = fmt.Sprintf("Your leave request for %s (%s) was approved by the HOD.", leave.SubjectName, dates)
	case LeaveEventHODReject:
		title = "Leave Rejected by HOD"
		body = fmt.Sprintf("Your leave request for %s (%s) was rejected by the HOD.", leave.SubjectName, dates)
	default:
		return batch
	}
	if remarks := reviewRemarks(leave, event); remarks != "" {
		body += " Remarks: " + remarks
	}
	batch.Direct = append(batch.Direct, models.NotificationSpec{
		RecipientID: leave.StudentUserID,
		SenderID:    actor.UserID,
		Title:       title,
		Message:     fmt.Sprintf("Hi %s, %s", leave.StudentName, body),
		Type:        models.NotificationTypeLeaveStatus,
		Link:        link,
		SendEmail:   true,
	})

	if event != LeaveEventTeacherApprove {
		return batch
	}
	hodIDs, err := s.academic.ListHODIDs(ctx, leave.DepartmentID)
	if err != nil {
		s.logger.Warn("failed to resolve department HODs", zap.String("department_id", leave.DepartmentID), zap.Error(err))
		return batch
	}
	hodMessage := fmt.Sprintf("%s (%s) requested leave for %s (%s). Reason: %s.",
		leave.StudentName, leave.RollNumber, leave.SubjectName, dates, leave.Reason)
	if remarks := reviewRemarks(leave, event); remarks != "" {
		hodMessage += " Teacher remarks: " + remarks
	}
	for _, hodID := range hodIDs {
		batch.Fanout = append(batch.Fanout, models.NotificationSpec{
			RecipientID: hodID,
			SenderID:    actor.UserID,
			Title:       "Leave Request Awaiting HOD Approval",
			Message:     hodMessage,
			Type:        models.NotificationTypeLeaveStatus,
			Link:        "/hod/leave-requests",
			SendEmail:   true,
		})
	}
	return batch
}

func reviewRemarks(leave *models.LeaveRequestDetail, event LeaveEvent) string {
	switch event {
	case LeaveEventTeacherApprove, LeaveEventTeacherReject:
		if leave.TeacherAction != nil {
			return leave.TeacherAction.Remarks
		}
	case LeaveEventHODApprove, LeaveEventHODReject:
		if leave.HODAction != nil {
			return leave.HODAction.Remarks
		}
	}
	return ""
}

func formatLeaveDates(from, to models.Date) string {
	if from.Equal(to.Time) {
		return from.Format(leaveNotifyDateFmt)
	}
	return fmt.Sprintf("%s to %s", from.Format(leaveNotifyDateFmt), to.Format(leaveNotifyDateFmt))
}

func validateStatuses(statuses []models.LeaveStatus) error {
	for _, st := range statuses {
		if !st.Valid() {
			return appErrors.Validation("invalid status filter", map[string]string{"status": fmt.Sprintf("unknown status %q", st)})
		}
	}
	return nil
}
