package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scahts-api/internal/models"
)

var leaveDetailColumns = []string{
	"id", "student_id", "subject_id", "department_id", "reason", "from_date", "to_date",
	"supporting_docs", "status",
	"teacher_actor_id", "teacher_acted_at", "teacher_remarks", "teacher_decision",
	"hod_actor_id", "hod_acted_at", "hod_remarks", "hod_decision",
	"created_at", "updated_at",
	"student_name", "student_user_id", "roll_number", "subject_code", "subject_name", "department_name",
}

func TestLeaveRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leave_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	from, _ := models.ParseDate("2024-03-01")
	req := &models.LeaveRequest{
		StudentID:    "stu-1",
		SubjectID:    "sub-1",
		DepartmentID: "dept-1",
		Reason:       "fever",
		FromDate:     from,
		ToDate:       from,
	}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.LeaveStatusPendingTeacher, req.Status)
	assert.Equal(t, []string{}, req.SupportingDocs)
	assert.Equal(t, req.CreatedAt, req.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepositoryGetDetailMapsGateActions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveRequestRepository(db)

	now := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(leaveDetailColumns).AddRow(
		"leave-1", "stu-1", "sub-1", "dept-1", "fever", "2024-03-01", "2024-03-03",
		"{https://docs/a.pdf}", "PENDING_HOD",
		"teacher-1", now, "ok", "approve",
		nil, nil, nil, nil,
		now, now,
		"Asha", "user-stu-1", "CS-01", "CS101", "Algorithms", "Computer Science",
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM leave_requests lr")).
		WithArgs("leave-1").
		WillReturnRows(rows)

	detail, err := repo.GetDetail(context.Background(), "leave-1")
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusPendingHOD, detail.Status)
	assert.Equal(t, "2024-03-03", detail.ToDate.String())
	assert.Equal(t, []string{"https://docs/a.pdf"}, detail.SupportingDocs)
	require.NotNil(t, detail.TeacherAction)
	assert.Equal(t, "teacher-1", detail.TeacherAction.ActorID)
	assert.Equal(t, models.LeaveDecisionApprove, detail.TeacherAction.Decision)
	assert.Nil(t, detail.HODAction)
	assert.Equal(t, "user-stu-1", detail.StudentUserID)
	assert.Equal(t, "CS101", detail.SubjectCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepositoryGetDetailNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM leave_requests lr")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetDetail(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLeaveRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveRequestRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(leaveDetailColumns).AddRow(
		"leave-2", "stu-1", "sub-1", "dept-1", "trip", "2024-03-01", "2024-03-01",
		"{}", "PENDING_TEACHER",
		nil, nil, nil, nil, nil, nil, nil, nil,
		now, now,
		"Asha", "user-stu-1", "CS-01", "CS101", "Algorithms", "Computer Science",
	)
	mock.ExpectQuery(`sb\.teacher_id = \$1 AND lr\.status IN \(\$2\) ORDER BY lr\.created_at DESC, lr\.id DESC LIMIT 50 OFFSET 0`).
		WithArgs("teacher-1", models.LeaveStatusPendingTeacher).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.LeaveFilter{
		TeacherID: "teacher-1",
		Status:    []models.LeaveStatus{models.LeaveStatusPendingTeacher},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "leave-2", list[0].ID)
	assert.Empty(t, list[0].SupportingDocs)
	assert.NotNil(t, list[0].SupportingDocs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepositoryCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM leave_requests lr")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.Count(context.Background(), models.LeaveFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestLeaveRequestRepositoryUpdateTransitionWritesGateColumns(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveRequestRepository(db)

	mock.ExpectExec(`UPDATE leave_requests SET status = .+, updated_at = .+, hod_actor_id = .+, hod_acted_at = .+, hod_remarks = .+, hod_decision = .+ WHERE id = `).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateTransition(context.Background(), LeaveTransitionParams{
		ID:        "leave-1",
		Status:    models.LeaveStatusApproved,
		Gate:      models.LeaveGateHOD,
		Action:    &models.ReviewAction{ActorID: "hod-1", At: time.Now(), Decision: models.LeaveDecisionApprove},
		UpdatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepositoryUpdateTransitionStatusOnly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveRequestRepository(db)

	mock.ExpectExec(`UPDATE leave_requests SET status = .+, updated_at = .+ WHERE id = `).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateTransition(context.Background(), LeaveTransitionParams{
		ID:        "gone",
		Status:    models.LeaveStatusWithdrawn,
		UpdatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLeaveRequestRepositoryUpdateTransitionRejectsUnknownGate(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveRequestRepository(db)

	err := repo.UpdateTransition(context.Background(), LeaveTransitionParams{
		ID:     "leave-1",
		Status: models.LeaveStatusApproved,
		Action: &models.ReviewAction{ActorID: "x"},
	})
	assert.Error(t, err)
}
