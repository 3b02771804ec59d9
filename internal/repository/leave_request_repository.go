package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/scahts-api/internal/models"
)

const leaveColumns = `lr.id, lr.student_id, lr.subject_id, lr.department_id, lr.reason, lr.from_date, lr.to_date,
       lr.supporting_docs, lr.status,
       lr.teacher_actor_id, lr.teacher_acted_at, lr.teacher_remarks, lr.teacher_decision,
       lr.hod_actor_id, lr.hod_acted_at, lr.hod_remarks, lr.hod_decision,
       lr.created_at, lr.updated_at`

const leaveDetailSelect = `SELECT ` + leaveColumns + `,
       u.full_name AS student_name, st.user_id AS student_user_id, st.roll_number,
       sb.code AS subject_code, sb.name AS subject_name, d.name AS department_name
FROM leave_requests lr
JOIN students st ON st.id = lr.student_id
JOIN users u ON u.id = st.user_id
JOIN subjects sb ON sb.id = lr.subject_id
JOIN departments d ON d.id = lr.department_id`

// leaveRow mirrors the flat leave_requests table.
type leaveRow struct {
	ID              string             `db:"id"`
	StudentID       string             `db:"student_id"`
	SubjectID       string             `db:"subject_id"`
	DepartmentID    string             `db:"department_id"`
	Reason          string             `db:"reason"`
	FromDate        models.Date        `db:"from_date"`
	ToDate          models.Date        `db:"to_date"`
	SupportingDocs  pq.StringArray     `db:"supporting_docs"`
	Status          models.LeaveStatus `db:"status"`
	TeacherActorID  sql.NullString     `db:"teacher_actor_id"`
	TeacherActedAt  sql.NullTime       `db:"teacher_acted_at"`
	TeacherRemarks  sql.NullString     `db:"teacher_remarks"`
	TeacherDecision sql.NullString     `db:"teacher_decision"`
	HODActorID      sql.NullString     `db:"hod_actor_id"`
	HODActedAt      sql.NullTime       `db:"hod_acted_at"`
	HODRemarks      sql.NullString     `db:"hod_remarks"`
	HODDecision     sql.NullString     `db:"hod_decision"`
	CreatedAt       time.Time          `db:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at"`
}

type leaveDetailRow struct {
	leaveRow
	StudentName    string `db:"student_name"`
	StudentUserID  string `db:"student_user_id"`
	RollNumber     string `db:"roll_number"`
	SubjectCode    string `db:"subject_code"`
	SubjectName    string `db:"subject_name"`
	DepartmentName string `db:"department_name"`
}

func (r leaveRow) toModel() models.LeaveRequest {
	docs := []string(r.SupportingDocs)
	if docs == nil {
		docs = []string{}
	}
	return models.LeaveRequest{
		ID:             r.ID,
		StudentID:      r.StudentID,
		SubjectID:      r.SubjectID,
		DepartmentID:   r.DepartmentID,
		Reason:         r.Reason,
		FromDate:       r.FromDate,
		ToDate:         r.ToDate,
		SupportingDocs: docs,
		Status:         r.Status,
		TeacherAction:  reviewAction(r.TeacherActorID, r.TeacherActedAt, r.TeacherRemarks, r.TeacherDecision),
		HODAction:      reviewAction(r.HODActorID, r.HODActedAt, r.HODRemarks, r.HODDecision),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (r leaveDetailRow) toModel() models.LeaveRequestDetail {
	return models.LeaveRequestDetail{
		LeaveRequest:   r.leaveRow.toModel(),
		StudentName:    r.StudentName,
		StudentUserID:  r.StudentUserID,
		RollNumber:     r.RollNumber,
		SubjectCode:    r.SubjectCode,
		SubjectName:    r.SubjectName,
		DepartmentName: r.DepartmentName,
	}
}

func reviewAction(actor sql.NullString, at sql.NullTime, remarks, decision sql.NullString) *models.ReviewAction {
	if !actor.Valid {
		return nil
	}
	action := &models.ReviewAction{
		ActorID:  actor.String,
		Remarks:  remarks.String,
		Decision: models.LeaveDecision(decision.String),
	}
	if at.Valid {
		action.At = at.Time
	}
	return action
}

// LeaveRequestRepository persists leave requests.
type LeaveRequestRepository struct {
	db *sqlx.DB
}

// NewLeaveRequestRepository constructs the repository.
func NewLeaveRequestRepository(db *sqlx.DB) *LeaveRequestRepository {
	return &LeaveRequestRepository{db: db}
}

// Create inserts a new request, filling id, status and timestamps when unset.
func (r *LeaveRequestRepository) Create(ctx context.Context, req *models.LeaveRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.LeaveStatusPendingTeacher
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = req.CreatedAt
	if req.SupportingDocs == nil {
		req.SupportingDocs = []string{}
	}
	const query = `INSERT INTO leave_requests
	(id, student_id, subject_id, department_id, reason, from_date, to_date, supporting_docs, status, created_at, updated_at)
	VALUES (:id, :student_id, :subject_id, :department_id, :reason, :from_date, :to_date, :supporting_docs, :status, :created_at, :updated_at)`
	row := leaveRow{
		ID:             req.ID,
		StudentID:      req.StudentID,
		SubjectID:      req.SubjectID,
		DepartmentID:   req.DepartmentID,
		Reason:         req.Reason,
		FromDate:       req.FromDate,
		ToDate:         req.ToDate,
		SupportingDocs: pq.StringArray(req.SupportingDocs),
		Status:         req.Status,
		CreatedAt:      req.CreatedAt,
		UpdatedAt:      req.UpdatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("create leave request: %w", err)
	}
	return nil
}

// GetDetail fetches a request with display names. Returns sql.ErrNoRows when absent.
func (r *LeaveRequestRepository) GetDetail(ctx context.Context, id string) (*models.LeaveRequestDetail, error) {
	query := leaveDetailSelect + ` WHERE lr.id = $1`
	var row leaveDetailRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	detail := row.toModel()
	return &detail, nil
}

// List returns requests matching the filter, newest first.
func (r *LeaveRequestRepository) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequestDetail, error) {
	where, args := leaveConditions(filter)
	builder := strings.Builder{}
	builder.WriteString(leaveDetailSelect)
	builder.WriteString(where)
	builder.WriteString(" ORDER BY lr.created_at DESC, lr.id DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var rows []leaveDetailRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list leave requests: %w", err)
	}
	result := make([]models.LeaveRequestDetail, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toModel())
	}
	return result, nil
}

// Count returns the number of requests matching the filter.
func (r *LeaveRequestRepository) Count(ctx context.Context, filter models.LeaveFilter) (int, error) {
	where, args := leaveConditions(filter)
	query := `SELECT COUNT(*) FROM leave_requests lr JOIN subjects sb ON sb.id = lr.subject_id` + where
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count leave requests: %w", err)
	}
	return total, nil
}

func leaveConditions(filter models.LeaveFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("lr.student_id = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("sb.teacher_id = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("lr.department_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("lr.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// LeaveTransitionParams groups the columns written by a state transition.
type LeaveTransitionParams struct {
	ID        string
	Status    models.LeaveStatus
	Gate      models.LeaveGate
	Action    *models.ReviewAction
	UpdatedAt time.Time
}

// UpdateTransition writes the new status and, for review gates, the gate's
// action record. The write is keyed by id only; the caller's state check is
// not re-verified here.
func (r *LeaveRequestRepository) UpdateTransition(ctx context.Context, params LeaveTransitionParams) error {
	setParts := []string{"status = :status", "updated_at = :updated_at"}
	args := map[string]interface{}{
		"id":         params.ID,
		"status":     params.Status,
		"updated_at": params.UpdatedAt,
	}
	if params.Action != nil {
		var prefix string
		switch params.Gate {
		case models.LeaveGateTeacher:
			prefix = "teacher"
		case models.LeaveGateHOD:
			prefix = "hod"
		default:
			return fmt.Errorf("update leave transition: unknown gate %q", params.Gate)
		}
		setParts = append(setParts,
			prefix+"_actor_id = :actor_id",
			prefix+"_acted_at = :acted_at",
			prefix+"_remarks = :remarks",
			prefix+"_decision = :decision",
		)
		args["actor_id"] = params.Action.ActorID
		args["acted_at"] = params.Action.At
		args["remarks"] = params.Action.Remarks
		args["decision"] = params.Action.Decision
	}
	query := fmt.Sprintf("UPDATE leave_requests SET %s WHERE id = :id", strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update leave transition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check leave transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
