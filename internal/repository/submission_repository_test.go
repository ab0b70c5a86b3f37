package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/moodpoints-api/internal/models"
)

func newSubmissionRepoMock(t *testing.T) (*SubmissionRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewSubmissionRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestSubmissionRepositoryListByStudents(t *testing.T) {
	repo, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)
	rows := sqlmock.NewRows([]string{"id", "student_id", "emotion", "note", "submitted_at"}).
		AddRow("1", "s1", "happy", nil, from.Add(time.Hour)).
		AddRow("2", "s2", "tired", "late night", from.Add(2*time.Hour))
	mock.ExpectQuery("WHERE student_id = ANY\\(\\$1\\) AND submitted_at >= \\$2 AND submitted_at <= \\$3 ORDER BY submitted_at ASC").
		WithArgs(sqlmock.AnyArg(), from, to).
		WillReturnRows(rows)

	subs, err := repo.ListByStudents(context.Background(), models.SubmissionFilter{StudentIDs: []string{"s1", "s2"}, From: from, To: to})
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, models.EmotionTired, subs[1].Emotion)
	require.NotNil(t, subs[1].Note)
	assert.Equal(t, "late night", *subs[1].Note)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListByStudentsSkipsEmptyRoster(t *testing.T) {
	repo, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	subs, err := repo.ListByStudents(context.Background(), models.SubmissionFilter{})
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositorySubmittedSinceIsOneQuery(t *testing.T) {
	repo, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT DISTINCT student_id FROM emotion_submissions WHERE student_id = ANY").
		WithArgs(sqlmock.AnyArg(), cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("s2"))

	status, err := repo.SubmittedSince(context.Background(), []string{"s1", "s2", "s3"}, cutoff)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"s1": false, "s2": true, "s3": false}, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
