package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/moodpoints-api/internal/dto"
	"github.com/noah-isme/moodpoints-api/internal/models"
	"github.com/noah-isme/moodpoints-api/pkg/export"
	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
)

const (
	analyticsCachePrefix = "analytics:emotions"
	reportingDayLayout   = "2006-01-02"
	cacheBucketLayout    = "20060102T150405"

	defaultAnalyticsCacheTTL = 10 * time.Minute
)

// RosterReader exposes the read-only school roster.
type RosterReader interface {
	FindClass(ctx context.Context, id string) (*models.Class, error)
	StudentsInClass(ctx context.Context, classID string) ([]models.Student, error)
	FindStudent(ctx context.Context, id string) (*models.Student, error)
	FindTeacher(ctx context.Context, id string) (*models.Teacher, error)
	ClassIDsForTeacher(ctx context.Context, teacherID string) ([]string, error)
}

// SubmissionReader serves read-side submission scans.
type SubmissionReader interface {
	ListByStudents(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.Submission, error)
	SubmittedSince(ctx context.Context, studentIDs []string, cutoff time.Time) (map[string]bool, error)
}

// AnalyticsOptions tunes windowing and the reporting day.
type AnalyticsOptions struct {
	DefaultWindowDays int
	MaxWindowDays     int
	Location          *time.Location
	CacheTTL          time.Duration
}

// AnalyticsService derives class-level emotion analytics. It never mutates state.
type AnalyticsService struct {
	roster      RosterReader
	submissions SubmissionReader
	cache       *CacheService
	metrics     *MetricsService
	clock       Clock
	exporter    *export.CSVExporter
	opts        AnalyticsOptions
	logger      *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(roster RosterReader, submissions SubmissionReader, cache *CacheService, metrics *MetricsService, clock Clock, opts AnalyticsOptions, logger *zap.Logger) *AnalyticsService {
	if opts.DefaultWindowDays <= 0 {
		opts.DefaultWindowDays = 7
	}
	if opts.MaxWindowDays <= 0 {
		opts.MaxWindowDays = 90
	}
	if opts.DefaultWindowDays > opts.MaxWindowDays {
		opts.DefaultWindowDays = opts.MaxWindowDays
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultAnalyticsCacheTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		roster:      roster,
		submissions: submissions,
		cache:       cache,
		metrics:     metrics,
		clock:       clock,
		exporter:    export.NewCSVExporter(),
		opts:        opts,
		logger:      logger,
	}
}

// ResolveWindow applies the default for zero and rejects values outside 1..MaxWindowDays.
func (s *AnalyticsService) ResolveWindow(windowDays int) (int, error) {
	if windowDays == 0 {
		return s.opts.DefaultWindowDays, nil
	}
	if windowDays < 1 || windowDays > s.opts.MaxWindowDays {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window_days must be between 1 and %d", s.opts.MaxWindowDays))
	}
	return windowDays, nil
}

// ClassAnalytics returns the snapshot for a class over the trailing window. The boolean reports a cache hit.
func (s *AnalyticsService) ClassAnalytics(ctx context.Context, classID string, windowDays int) (*models.AnalyticsSnapshot, bool, error) {
	windowDays, err := s.ResolveWindow(windowDays)
	if err != nil {
		return nil, false, err
	}
	now := s.clock.Now().UTC()
	cacheKey := analyticsCacheKey(classID, windowDays, now.In(s.opts.Location).Format(reportingDayLayout), now.Truncate(s.opts.CacheTTL))

	var cached models.AnalyticsSnapshot
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	students, err := s.classStudents(ctx, classID)
	if err != nil {
		return nil, false, err
	}

	from := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	start := time.Now()
	submissions, err := s.submissions.ListByStudents(ctx, models.SubmissionFilter{
		StudentIDs: studentIDs(students),
		From:       from,
		To:         now,
	})
	if err != nil {
		return nil, false, appErrors.Unavailable(err, "submission store unavailable")
	}
	s.metrics.ObserveDBQuery("analytics_class_submissions", time.Since(start))

	snapshot := AggregateSnapshot(classID, windowDays, from, now, s.opts.Location, len(students), submissions)
	s.cache.Set(ctx, cacheKey, snapshot, s.opts.CacheTTL)
	return &snapshot, false, nil
}

// AggregateSnapshot folds submissions into a snapshot over [from, to]. Submissions outside the
// window or with unknown emotions are ignored. Daily trends cover every reporting day touched by
// the window, oldest first, including days without activity.
func AggregateSnapshot(classID string, windowDays int, from, to time.Time, loc *time.Location, studentCount int, submissions []models.Submission) models.AnalyticsSnapshot {
	if loc == nil {
		loc = time.UTC
	}
	distribution := zeroDistribution()

	days := reportingDays(from, to, loc)
	trends := make([]models.DailyTrend, len(days))
	dayIndex := make(map[string]int, len(days))
	for i, day := range days {
		trends[i] = models.DailyTrend{Date: day, Distribution: zeroDistribution()}
		dayIndex[day] = i
	}

	total := 0
	for _, sub := range submissions {
		if !sub.Emotion.Valid() || sub.SubmittedAt.Before(from) || sub.SubmittedAt.After(to) {
			continue
		}
		distribution[sub.Emotion]++
		total++
		if idx, ok := dayIndex[sub.SubmittedAt.In(loc).Format(reportingDayLayout)]; ok {
			trends[idx].Distribution[sub.Emotion]++
			trends[idx].Total++
		}
	}

	ranked := RankEmotions(distribution)
	snapshot := models.AnalyticsSnapshot{
		ClassID:             classID,
		WindowDays:          windowDays,
		From:                from.UTC(),
		To:                  to.UTC(),
		Timezone:            loc.String(),
		StudentCount:        studentCount,
		EmotionDistribution: distribution,
		TotalEmotions:       total,
		RankedEmotions:      ranked,
		DailyTrends:         trends,
	}
	if total > 0 {
		top := ranked[0].Emotion
		snapshot.TopEmotion = &top
	}
	return snapshot
}

// RankEmotions orders every emotion by count descending, breaking ties by canonical order.
func RankEmotions(distribution map[models.Emotion]int) []models.EmotionCount {
	ranked := make([]models.EmotionCount, 0, len(models.CanonicalEmotions))
	for _, e := range models.CanonicalEmotions {
		ranked = append(ranked, models.EmotionCount{Emotion: e, Count: distribution[e]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return models.CanonicalLess(ranked[i].Emotion, ranked[j].Emotion)
	})
	return ranked
}

// SubmissionStatus reports which class members submitted since the start of the current reporting day.
func (s *AnalyticsService) SubmissionStatus(ctx context.Context, classID string) (*dto.ClassSubmissionStatus, error) {
	students, err := s.classStudents(ctx, classID)
	if err != nil {
		return nil, err
	}

	local := s.clock.Now().In(s.opts.Location)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.opts.Location)

	start := time.Now()
	submitted, err := s.submissions.SubmittedSince(ctx, studentIDs(students), cutoff)
	if err != nil {
		return nil, appErrors.Unavailable(err, "submission store unavailable")
	}
	s.metrics.ObserveDBQuery("analytics_submitted_since", time.Since(start))

	status := &dto.ClassSubmissionStatus{
		ClassID:  classID,
		Date:     cutoff.Format(reportingDayLayout),
		Cutoff:   cutoff.UTC(),
		Students: make([]dto.StudentSubmissionStatus, 0, len(students)),
		Total:    len(students),
	}
	for _, st := range students {
		done := submitted[st.ID]
		if done {
			status.SubmittedCount++
		}
		status.Students = append(status.Students, dto.StudentSubmissionStatus{StudentID: st.ID, Name: st.Name, Submitted: done})
	}
	if status.Total > 0 {
		status.Rate = round1(float64(status.SubmittedCount) / float64(status.Total) * 100)
	}
	return status, nil
}

// InsightPayload shapes aggregates for a text-generation collaborator. No notes or identities leave the service.
func (s *AnalyticsService) InsightPayload(ctx context.Context, classID string, windowDays int, locale string) (*dto.InsightPayload, error) {
	snapshot, _, err := s.ClassAnalytics(ctx, classID, windowDays)
	if err != nil {
		return nil, err
	}
	status, err := s.SubmissionStatus(ctx, classID)
	if err != nil {
		return nil, err
	}
	if locale == "" {
		locale = "en"
	}

	shares := make([]dto.InsightEmotionShare, 0, len(snapshot.RankedEmotions))
	for _, ec := range snapshot.RankedEmotions {
		share := dto.InsightEmotionShare{Emotion: ec.Emotion, Count: ec.Count}
		if snapshot.TotalEmotions > 0 {
			share.Percentage = round1(float64(ec.Count) / float64(snapshot.TotalEmotions) * 100)
		}
		shares = append(shares, share)
	}

	return &dto.InsightPayload{
		ClassID:             classID,
		WindowDays:          snapshot.WindowDays,
		From:                snapshot.From,
		To:                  snapshot.To,
		StudentCount:        snapshot.StudentCount,
		TotalEmotions:       snapshot.TotalEmotions,
		Emotions:            shares,
		DailyTrends:         snapshot.DailyTrends,
		SubmittedToday:      status.SubmittedCount,
		SubmissionRateToday: status.Rate,
		Locale:              locale,
	}, nil
}

// TrendsCSV renders the daily trends of a snapshot, one row per reporting day.
func (s *AnalyticsService) TrendsCSV(ctx context.Context, classID string, windowDays int) ([]byte, error) {
	snapshot, _, err := s.ClassAnalytics(ctx, classID, windowDays)
	if err != nil {
		return nil, err
	}
	headers := []string{"date"}
	for _, e := range models.CanonicalEmotions {
		headers = append(headers, string(e))
	}
	headers = append(headers, "total")

	dataset := export.Dataset{Headers: headers}
	for _, day := range snapshot.DailyTrends {
		values := []string{day.Date}
		for _, e := range models.CanonicalEmotions {
			values = append(values, strconv.Itoa(day.Distribution[e]))
		}
		values = append(values, strconv.Itoa(day.Total))
		dataset.AddRow(values...)
	}
	return s.exporter.Render(dataset)
}

// ExportContentType is the MIME type of TrendsCSV output.
func (s *AnalyticsService) ExportContentType() string {
	return s.exporter.ContentType()
}

// AuthorizeClass allows admins everywhere and teachers on their own classes.
func (s *AnalyticsService) AuthorizeClass(ctx context.Context, claims *models.JWTClaims, classID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		ids, err := s.roster.ClassIDsForTeacher(ctx, claims.UserID)
		if err != nil {
			return appErrors.Unavailable(err, "roster unavailable")
		}
		for _, id := range ids {
			if id == classID {
				return nil
			}
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "class is not assigned to you")
}

// InvalidateClass drops every cached snapshot of the class.
func (s *AnalyticsService) InvalidateClass(ctx context.Context, classID string) error {
	return s.cache.Invalidate(ctx, fmt.Sprintf("%s:%s:*", analyticsCachePrefix, classID))
}

// CacheEnabled reports whether snapshots are cached at all.
func (s *AnalyticsService) CacheEnabled() bool {
	return s.cache.Enabled()
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	return s.metrics.Snapshot()
}

func (s *AnalyticsService) classStudents(ctx context.Context, classID string) ([]models.Student, error) {
	if strings.TrimSpace(classID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}
	if _, err := s.roster.FindClass(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Unavailable(err, "roster unavailable")
	}
	students, err := s.roster.StudentsInClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Unavailable(err, "roster unavailable")
	}
	return students, nil
}

// analyticsCacheKey scopes a snapshot to one TTL-wide bucket of the rolling window end,
// so a hit never reflects a window older than the TTL.
func analyticsCacheKey(classID string, windowDays int, day string, bucket time.Time) string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", analyticsCachePrefix, classID, windowDays, day, bucket.UTC().Format(cacheBucketLayout))
}

func reportingDays(from, to time.Time, loc *time.Location) []string {
	if to.Before(from) {
		return []string{}
	}
	start := from.In(loc)
	end := to.In(loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)

	days := make([]string, 0)
	for !day.After(last) {
		days = append(days, day.Format(reportingDayLayout))
		day = day.AddDate(0, 0, 1)
	}
	return days
}

func zeroDistribution() map[models.Emotion]int {
	dist := make(map[models.Emotion]int, len(models.CanonicalEmotions))
	for _, e := range models.CanonicalEmotions {
		dist[e] = 0
	}
	return dist
}

func studentIDs(students []models.Student) []string {
	ids := make([]string, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	return ids
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
