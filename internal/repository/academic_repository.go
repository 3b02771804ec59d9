package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/scahts-api/internal/models"
)

// AcademicRepository reads the student, subject and department reference data
// the leave workflow resolves against.
type AcademicRepository struct {
	db *sqlx.DB
}

// NewAcademicRepository constructs the repository.
func NewAcademicRepository(db *sqlx.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

// FindStudentByUserID returns the student profile owned by a user account.
func (r *AcademicRepository) FindStudentByUserID(ctx context.Context, userID string) (*models.Student, error) {
	const query = `SELECT st.id, st.user_id, u.full_name, st.roll_number, st.department_id, st.semester
FROM students st JOIN users u ON u.id = st.user_id
WHERE st.user_id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by user: %w", err)
	}
	return &student, nil
}

// FindSubjectByID returns a subject.
func (r *AcademicRepository) FindSubjectByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, code, name, department_id, semester, teacher_id FROM subjects WHERE id = $1 LIMIT 1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// ListHODIDs returns the active HOD accounts of a department.
func (r *AcademicRepository) ListHODIDs(ctx context.Context, departmentID string) ([]string, error) {
	const query = `SELECT id FROM users WHERE role = $1 AND department_id = $2 AND active = TRUE ORDER BY id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, models.RoleHOD, departmentID); err != nil {
		return nil, fmt.Errorf("list hods: %w", err)
	}
	return ids, nil
}

// FindContacts returns email contacts for the given user ids. Unknown ids are skipped.
func (r *AcademicRepository) FindContacts(ctx context.Context, userIDs []string) ([]models.Contact, error) {
	if len(userIDs) == 0 {
		return []models.Contact{}, nil
	}
	const query = `SELECT id, email, full_name FROM users WHERE id = ANY($1)`
	var contacts []models.Contact
	if err := r.db.SelectContext(ctx, &contacts, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("find contacts: %w", err)
	}
	return contacts, nil
}
