package models

// Student is the roster view of a student account.
type Student struct {
	ID      string `db:"id" json:"id"`
	Login   string `db:"login" json:"login"`
	Name    string `db:"name" json:"name"`
	ClassID string `db:"class_id" json:"class_id"`
}

// Class groups students under a homeroom teacher.
type Class struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	TeacherID string `db:"teacher_id" json:"teacher_id"`
}

// Teacher is the roster view of a teacher account.
type Teacher struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}
