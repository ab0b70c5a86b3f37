package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/moodpoints-api/internal/models"
	"github.com/noah-isme/moodpoints-api/pkg/jobs"
)

// JobTypeAnalyticsInvalidate drops cached snapshots of the class of a student who just submitted.
const JobTypeAnalyticsInvalidate = "analytics.invalidate"

// StudentActivityNotifier is told about accepted submissions after they commit.
type StudentActivityNotifier interface {
	StudentActivity(studentID string)
}

type studentFinder interface {
	FindStudent(ctx context.Context, id string) (*models.Student, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// AnalyticsInvalidator turns student activity into background cache invalidation jobs.
type AnalyticsInvalidator struct {
	roster    studentFinder
	analytics *AnalyticsService
	metrics   *MetricsService
	queue     jobEnqueuer
	logger    *zap.Logger
}

// NewAnalyticsInvalidator constructs the invalidator. Attach a queue before use.
func NewAnalyticsInvalidator(roster studentFinder, analytics *AnalyticsService, metrics *MetricsService, logger *zap.Logger) *AnalyticsInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsInvalidator{roster: roster, analytics: analytics, metrics: metrics, logger: logger}
}

// Attach sets the queue jobs are published to.
func (i *AnalyticsInvalidator) Attach(queue jobEnqueuer) {
	i.queue = queue
}

// StudentActivity enqueues an invalidation for the student's class. It never blocks the caller.
func (i *AnalyticsInvalidator) StudentActivity(studentID string) {
	if i == nil || i.queue == nil || !i.analytics.CacheEnabled() {
		return
	}
	if err := i.queue.Enqueue(jobs.Job{Type: JobTypeAnalyticsInvalidate, Payload: studentID}); err != nil {
		i.logger.Warn("analytics invalidation not enqueued", zap.String("student_id", studentID), zap.Error(err))
	}
}

// Handle is the queue handler. Returned errors are retried by the queue.
func (i *AnalyticsInvalidator) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeAnalyticsInvalidate {
		return nil
	}
	studentID, ok := job.Payload.(string)
	if !ok || studentID == "" {
		i.logger.Warn("dropping malformed invalidation job", zap.String("job_id", job.ID))
		return nil
	}
	student, err := i.roster.FindStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("resolve class of %s: %w", studentID, err)
	}
	return i.analytics.InvalidateClass(ctx, student.ClassID)
}

// Exhausted records a job that ran out of retries.
func (i *AnalyticsInvalidator) Exhausted(job jobs.Job, err error) {
	i.metrics.RecordJobFailure(job.Type)
	i.logger.Error("analytics invalidation gave up", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
}
