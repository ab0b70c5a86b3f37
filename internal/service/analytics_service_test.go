package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/moodpoints-api/internal/models"
	"github.com/noah-isme/moodpoints-api/internal/repository"
	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
)

type stubCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
	failDel error
}

func newStubCacheRepo() *stubCacheRepo {
	return &stubCacheRepo{entries: map[string][]byte{}}
}

func (r *stubCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *stubCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = raw
	return nil
}

func (r *stubCacheRepo) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	if r.failDel != nil {
		return 0, r.failDel
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	removed := 0
	for key := range r.entries {
		if strings.HasPrefix(key, prefix) {
			delete(r.entries, key)
			removed++
		}
	}
	return removed, nil
}

type analyticsFixture struct {
	svc   *AnalyticsService
	store *repository.MemoryStore
	cache *stubCacheRepo
	clock *fakeClock
}

func newAnalyticsFixture(t *testing.T, cacheEnabled bool) analyticsFixture {
	t.Helper()
	store := repository.NewMemoryStore(repository.DemoSeed())
	clock := newFakeClock(time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC))
	cacheRepo := newStubCacheRepo()
	metrics := NewMetricsService()
	cache := NewCacheService(cacheRepo, metrics, time.Minute, nil, cacheEnabled)
	svc := NewAnalyticsService(store, store, cache, metrics, clock, AnalyticsOptions{DefaultWindowDays: 7, MaxWindowDays: 90}, nil)
	return analyticsFixture{svc: svc, store: store, cache: cacheRepo, clock: clock}
}

func seedSubmission(t *testing.T, store *repository.MemoryStore, studentID string, emotion models.Emotion, at time.Time) {
	t.Helper()
	require.NoError(t, store.WithStudent(context.Background(), studentID, func(tx repository.LedgerTx) error {
		return tx.AppendSubmission(context.Background(), &models.Submission{StudentID: studentID, Emotion: emotion, SubmittedAt: at})
	}))
}

func TestAggregateSnapshotZeroFillsEmptyWindow(t *testing.T) {
	to := time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
	from := to.Add(-7 * 24 * time.Hour)

	snapshot := AggregateSnapshot("class-1", 7, from, to, time.UTC, 3, nil)

	assert.Equal(t, 0, snapshot.TotalEmotions)
	assert.Nil(t, snapshot.TopEmotion)
	require.Len(t, snapshot.EmotionDistribution, 5)
	for _, e := range models.CanonicalEmotions {
		assert.Equal(t, 0, snapshot.EmotionDistribution[e])
	}
	require.Len(t, snapshot.DailyTrends, 8)
	assert.Equal(t, "2024-03-01", snapshot.DailyTrends[0].Date)
	assert.Equal(t, "2024-03-08", snapshot.DailyTrends[7].Date)
	for _, day := range snapshot.DailyTrends {
		assert.Equal(t, 0, day.Total)
		assert.Len(t, day.Distribution, 5)
	}
	require.Len(t, snapshot.RankedEmotions, 5)
	assert.Equal(t, models.EmotionHappy, snapshot.RankedEmotions[0].Emotion)
}

func TestAggregateSnapshotCountsAndTrends(t *testing.T) {
	to := time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
	from := to.Add(-7 * 24 * time.Hour)
	subs := []models.Submission{
		{StudentID: "a", Emotion: models.EmotionSad, SubmittedAt: from.Add(-time.Minute)},
		{StudentID: "a", Emotion: models.EmotionSad, SubmittedAt: from.Add(time.Hour)},
		{StudentID: "b", Emotion: models.EmotionTired, SubmittedAt: to.Add(-time.Hour)},
		{StudentID: "c", Emotion: models.EmotionTired, SubmittedAt: to},
		{StudentID: "d", Emotion: models.Emotion("bored"), SubmittedAt: to.Add(-time.Hour)},
		{StudentID: "e", Emotion: models.EmotionHappy, SubmittedAt: to.Add(time.Second)},
	}

	snapshot := AggregateSnapshot("class-1", 7, from, to, time.UTC, 5, subs)

	assert.Equal(t, 3, snapshot.TotalEmotions)
	assert.Equal(t, 1, snapshot.EmotionDistribution[models.EmotionSad])
	assert.Equal(t, 2, snapshot.EmotionDistribution[models.EmotionTired])
	require.NotNil(t, snapshot.TopEmotion)
	assert.Equal(t, models.EmotionTired, *snapshot.TopEmotion)

	trendTotal := 0
	for _, day := range snapshot.DailyTrends {
		trendTotal += day.Total
	}
	assert.Equal(t, snapshot.TotalEmotions, trendTotal)
	assert.Equal(t, 1, snapshot.DailyTrends[0].Distribution[models.EmotionSad])
	assert.Equal(t, 2, snapshot.DailyTrends[7].Distribution[models.EmotionTired])
}

func TestAggregateSnapshotUsesReportingTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	to := time.Date(2024, 3, 8, 20, 0, 0, 0, time.UTC)
	from := to.Add(-24 * time.Hour)
	subs := []models.Submission{{StudentID: "a", Emotion: models.EmotionHappy, SubmittedAt: time.Date(2024, 3, 8, 18, 0, 0, 0, time.UTC)}}

	snapshot := AggregateSnapshot("class-1", 1, from, to, loc, 1, subs)

	assert.Equal(t, "UTC+7", snapshot.Timezone)
	require.Len(t, snapshot.DailyTrends, 2)
	assert.Equal(t, "2024-03-09", snapshot.DailyTrends[1].Date)
	assert.Equal(t, 1, snapshot.DailyTrends[1].Total)
}

func TestRankEmotionsBreaksTiesCanonically(t *testing.T) {
	ranked := RankEmotions(map[models.Emotion]int{
		models.EmotionTired: 3,
		models.EmotionSad:   3,
		models.EmotionHappy: 1,
		models.EmotionAngry: 1,
	})
	got := make([]models.Emotion, 0, len(ranked))
	for _, ec := range ranked {
		got = append(got, ec.Emotion)
	}
	assert.Equal(t, []models.Emotion{
		models.EmotionSad, models.EmotionTired, models.EmotionHappy, models.EmotionAngry, models.EmotionNeutral,
	}, got)
}

func TestClassAnalyticsIsIdempotent(t *testing.T) {
	f := newAnalyticsFixture(t, false)
	now := f.clock.Now()
	seedSubmission(t, f.store, "student-6-2-01", models.EmotionHappy, now.Add(-time.Hour))
	seedSubmission(t, f.store, "student-6-2-02", models.EmotionSad, now.Add(-48*time.Hour))
	seedSubmission(t, f.store, "student-6-2-03", models.EmotionAngry, now.Add(-10*24*time.Hour))

	first, hit, err := f.svc.ClassAnalytics(context.Background(), "class-6-2", 0)
	require.NoError(t, err)
	assert.False(t, hit)
	second, _, err := f.svc.ClassAnalytics(context.Background(), "class-6-2", 7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, first.TotalEmotions)
	assert.Equal(t, 40, first.StudentCount)
	assert.Equal(t, 7, first.WindowDays)
}

func TestClassAnalyticsServesFromCache(t *testing.T) {
	f := newAnalyticsFixture(t, true)
	seedSubmission(t, f.store, "student-6-2-01", models.EmotionHappy, f.clock.Now().Add(-time.Hour))

	first, hit, err := f.svc.ClassAnalytics(context.Background(), "class-6-2", 7)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := f.svc.ClassAnalytics(context.Background(), "class-6-2", 7)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.TotalEmotions, second.TotalEmotions)
	assert.Equal(t, first.RankedEmotions, second.RankedEmotions)
	assert.Contains(t, f.cache.entries, "analytics:emotions:class-6-2:7:2024-03-08:20240308T120000")

	require.NoError(t, f.svc.InvalidateClass(context.Background(), "class-6-2"))
	assert.Empty(t, f.cache.entries)
	_, hit, err = f.svc.ClassAnalytics(context.Background(), "class-6-2", 7)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestClassAnalyticsCacheFollowsRollingWindow(t *testing.T) {
	f := newAnalyticsFixture(t, true)
	edge := f.clock.Now().Add(-7*24*time.Hour + time.Hour)
	seedSubmission(t, f.store, "student-6-2-01", models.EmotionSad, edge)

	snapshot, hit, err := f.svc.ClassAnalytics(context.Background(), "class-6-2", 7)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, snapshot.TotalEmotions)

	f.clock.Advance(3 * time.Hour)
	snapshot, hit, err = f.svc.ClassAnalytics(context.Background(), "class-6-2", 7)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 0, snapshot.TotalEmotions)
	assert.True(t, snapshot.To.Equal(f.clock.Now()))

	f.clock.Advance(time.Minute)
	_, hit, err = f.svc.ClassAnalytics(context.Background(), "class-6-2", 7)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestClassAnalyticsValidatesWindow(t *testing.T) {
	f := newAnalyticsFixture(t, false)
	for _, days := range []int{-1, 91} {
		_, _, err := f.svc.ClassAnalytics(context.Background(), "class-6-2", days)
		assert.True(t, errors.Is(err, appErrors.ErrValidation), "window %d", days)
	}
}

func TestClassAnalyticsUnknownClass(t *testing.T) {
	f := newAnalyticsFixture(t, false)
	_, _, err := f.svc.ClassAnalytics(context.Background(), "class-9-9", 7)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSubmissionStatusUsesStartOfReportingDay(t *testing.T) {
	f := newAnalyticsFixture(t, false)
	now := f.clock.Now()
	seedSubmission(t, f.store, "student-6-2-01", models.EmotionHappy, now.Add(-time.Hour))
	seedSubmission(t, f.store, "student-6-2-02", models.EmotionHappy, now.Add(-13*time.Hour))

	status, err := f.svc.SubmissionStatus(context.Background(), "class-6-2")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-08", status.Date)
	assert.Equal(t, 40, status.Total)
	assert.Equal(t, 1, status.SubmittedCount)
	assert.Equal(t, 2.5, status.Rate)
	require.Len(t, status.Students, 40)
	assert.True(t, status.Students[0].Submitted)
	assert.False(t, status.Students[1].Submitted)
}

func TestInsightPayloadCarriesSharesOnly(t *testing.T) {
	f := newAnalyticsFixture(t, false)
	now := f.clock.Now()
	seedSubmission(t, f.store, "student-6-2-01", models.EmotionHappy, now.Add(-time.Hour))
	seedSubmission(t, f.store, "student-6-2-02", models.EmotionHappy, now.Add(-2*time.Hour))
	seedSubmission(t, f.store, "student-6-2-03", models.EmotionSad, now.Add(-30*time.Hour))

	payload, err := f.svc.InsightPayload(context.Background(), "class-6-2", 7, "")
	require.NoError(t, err)
	assert.Equal(t, "en", payload.Locale)
	assert.Equal(t, 3, payload.TotalEmotions)
	require.Len(t, payload.Emotions, 5)
	assert.Equal(t, models.EmotionHappy, payload.Emotions[0].Emotion)
	assert.Equal(t, 66.7, payload.Emotions[0].Percentage)
	assert.Equal(t, 33.3, payload.Emotions[1].Percentage)
	assert.Equal(t, 2, payload.SubmittedToday)
}

func TestTrendsCSV(t *testing.T) {
	f := newAnalyticsFixture(t, false)
	seedSubmission(t, f.store, "student-6-2-01", models.EmotionAngry, f.clock.Now().Add(-time.Hour))

	raw, err := f.svc.TrendsCSV(context.Background(), "class-6-2", 2)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "date,happy,neutral,sad,angry,tired,total", lines[0])
	assert.Equal(t, "2024-03-08,0,0,0,1,0,1", lines[3])
	assert.Contains(t, f.svc.ExportContentType(), "text/csv")
}

func TestAuthorizeClass(t *testing.T) {
	f := newAnalyticsFixture(t, false)
	ctx := context.Background()

	assert.NoError(t, f.svc.AuthorizeClass(ctx, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, "class-6-2"))
	assert.NoError(t, f.svc.AuthorizeClass(ctx, &models.JWTClaims{UserID: "teacher-6-2", Role: models.RoleTeacher}, "class-6-2"))

	err := f.svc.AuthorizeClass(ctx, &models.JWTClaims{UserID: "teacher-other", Role: models.RoleTeacher}, "class-6-2")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	err = f.svc.AuthorizeClass(ctx, &models.JWTClaims{UserID: "student-6-2-01", Role: models.RoleStudent}, "class-6-2")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}
