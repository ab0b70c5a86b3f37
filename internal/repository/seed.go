package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/moodpoints-api/internal/models"
)

// Seed is a roster plus reward catalog used to bootstrap an empty store.
type Seed struct {
	Teachers []models.Teacher
	Classes  []models.Class
	Students []models.Student
	Rewards  []models.Reward
}

// DemoSeed returns one class of forty students with its homeroom teacher and two rewards.
func DemoSeed() Seed {
	teacher := models.Teacher{ID: "teacher-6-2", Name: "Homeroom Teacher", Email: "teacher62@school.local"}
	class := models.Class{ID: "class-6-2", Name: "6/2", TeacherID: teacher.ID}

	students := make([]models.Student, 0, 40)
	for i := 1; i <= 40; i++ {
		students = append(students, models.Student{
			ID:      fmt.Sprintf("student-6-2-%02d", i),
			Login:   fmt.Sprintf("6-2-%02d", i),
			Name:    fmt.Sprintf("Student %02d", i),
			ClassID: class.ID,
		})
	}

	return Seed{
		Teachers: []models.Teacher{teacher},
		Classes:  []models.Class{class},
		Students: students,
		Rewards: []models.Reward{
			{ID: "reward-keychain", Name: "Keychain", Cost: 20, Description: "School keychain", Active: true},
			{ID: "reward-pencil", Name: "Pencil", Cost: 10, Description: "Pencil with eraser", Active: true},
		},
	}
}

// ApplySeed inserts the seed inside one transaction. Existing rows are left untouched.
func ApplySeed(ctx context.Context, db *sqlx.DB, seed Seed) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range seed.Teachers {
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO teachers (id, name, email) VALUES (:id, :name, :email)
ON CONFLICT (id) DO NOTHING`, &seed.Teachers[i]); err != nil {
			return fmt.Errorf("seed teacher: %w", err)
		}
	}
	for i := range seed.Classes {
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO classes (id, name, teacher_id) VALUES (:id, :name, :teacher_id)
ON CONFLICT (id) DO NOTHING`, &seed.Classes[i]); err != nil {
			return fmt.Errorf("seed class: %w", err)
		}
	}
	for i := range seed.Students {
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO students (id, login, name, class_id) VALUES (:id, :login, :name, :class_id)
ON CONFLICT (id) DO NOTHING`, &seed.Students[i]); err != nil {
			return fmt.Errorf("seed student: %w", err)
		}
	}
	for i := range seed.Rewards {
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO rewards (id, name, cost, description, image_url, active)
VALUES (:id, :name, :cost, :description, :image_url, :active) ON CONFLICT (id) DO NOTHING`, &seed.Rewards[i]); err != nil {
			return fmt.Errorf("seed reward: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
