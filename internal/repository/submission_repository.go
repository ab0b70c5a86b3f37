package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/moodpoints-api/internal/models"
)

// SubmissionRepository serves read-side scans over emotion submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs a SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// ListByStudents returns submissions of the given students whose timestamps fall in [From, To].
func (r *SubmissionRepository) ListByStudents(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	if len(filter.StudentIDs) == 0 {
		return []models.Submission{}, nil
	}

	args := []interface{}{pq.Array(filter.StudentIDs)}
	conditions := []string{"student_id = ANY($1)"}
	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("submitted_at >= $%d", len(args)+1))
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("submitted_at <= $%d", len(args)+1))
		args = append(args, filter.To.UTC())
	}

	query := fmt.Sprintf(`SELECT id, student_id, emotion, note, submitted_at FROM emotion_submissions
WHERE %s ORDER BY submitted_at ASC`, strings.Join(conditions, " AND "))

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// ListByStudent returns the student's latest submissions, newest first.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `SELECT id, student_id, emotion, note, submitted_at FROM emotion_submissions
WHERE student_id = $1 ORDER BY submitted_at DESC LIMIT $2`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}
	return submissions, nil
}

// SubmittedSince reports, in one query, which of the students have a submission at or after cutoff.
// Every requested student is present in the result.
func (r *SubmissionRepository) SubmittedSince(ctx context.Context, studentIDs []string, cutoff time.Time) (map[string]bool, error) {
	result := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		result[id] = false
	}
	if len(studentIDs) == 0 {
		return result, nil
	}

	const query = `SELECT DISTINCT student_id FROM emotion_submissions WHERE student_id = ANY($1) AND submitted_at >= $2`
	var submitted []string
	if err := r.db.SelectContext(ctx, &submitted, query, pq.Array(studentIDs), cutoff.UTC()); err != nil {
		return nil, fmt.Errorf("submitted since: %w", err)
	}
	for _, id := range submitted {
		result[id] = true
	}
	return result, nil
}
