package dto

import "github.com/noah-isme/moodpoints-api/internal/models"

// ProfileKind tags which projection a Profile carries.
type ProfileKind string

const (
	ProfileKindStudent ProfileKind = "student"
	ProfileKindTeacher ProfileKind = "teacher"
	ProfileKindAdmin   ProfileKind = "admin"
)

// Profile is a tagged variant: exactly one of Student, Teacher or Admin is set, matching Kind.
type Profile struct {
	Kind    ProfileKind     `json:"kind"`
	Student *StudentProfile `json:"student,omitempty"`
	Teacher *TeacherProfile `json:"teacher,omitempty"`
	Admin   *AdminProfile   `json:"admin,omitempty"`
}

// StudentProfile is the student projection.
type StudentProfile struct {
	ID      string          `json:"id"`
	Login   string          `json:"login"`
	Name    string          `json:"name"`
	ClassID string          `json:"class_id"`
	Points  int64           `json:"points"`
	Role    models.UserRole `json:"role"`
}

// TeacherProfile is the teacher projection.
type TeacherProfile struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	ClassIDs []string        `json:"class_ids"`
	Role     models.UserRole `json:"role"`
}

// AdminProfile is the admin projection.
type AdminProfile struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
}
