package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/moodpoints-api/internal/models"
)

// RosterRepository exposes the school roster: classes, their students and teachers.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs a RosterRepository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// FindClass fetches a class by id.
func (r *RosterRepository) FindClass(ctx context.Context, id string) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, `SELECT id, name, teacher_id FROM classes WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// StudentsInClass lists the class members ordered by name.
func (r *RosterRepository) StudentsInClass(ctx context.Context, classID string) ([]models.Student, error) {
	const query = `SELECT id, login, name, class_id FROM students WHERE class_id = $1 ORDER BY name ASC, id ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}

// FindStudent fetches a student by id.
func (r *RosterRepository) FindStudent(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, `SELECT id, login, name, class_id FROM students WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindTeacher fetches a teacher by id.
func (r *RosterRepository) FindTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, `SELECT id, name, email FROM teachers WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ClassIDsForTeacher lists the classes a teacher is responsible for.
func (r *RosterRepository) ClassIDsForTeacher(ctx context.Context, teacherID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM classes WHERE teacher_id = $1 ORDER BY id`, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher classes: %w", err)
	}
	return ids, nil
}
