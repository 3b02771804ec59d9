package models

// Department is an academic department headed by one or more HODs.
type Department struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// Student is the enrollment profile of a STUDENT user.
type Student struct {
	ID           string `db:"id" json:"id"`
	UserID       string `db:"user_id" json:"userId"`
	FullName     string `db:"full_name" json:"fullName"`
	RollNumber   string `db:"roll_number" json:"rollNumber"`
	DepartmentID string `db:"department_id" json:"departmentId"`
	Semester     int    `db:"semester" json:"semester"`
}

// Subject is taught in one department and semester by an assigned teacher.
type Subject struct {
	ID           string  `db:"id" json:"id"`
	Code         string  `db:"code" json:"code"`
	Name         string  `db:"name" json:"name"`
	DepartmentID string  `db:"department_id" json:"departmentId"`
	Semester     int     `db:"semester" json:"semester"`
	TeacherID    *string `db:"teacher_id" json:"teacherId,omitempty"`
}

// TaughtBy reports whether userID is the subject's assigned teacher.
func (s *Subject) TaughtBy(userID string) bool {
	return s != nil && s.TeacherID != nil && *s.TeacherID == userID
}
