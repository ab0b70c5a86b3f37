package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/moodpoints-api/internal/dto"
	"github.com/noah-isme/moodpoints-api/internal/models"
	"github.com/noah-isme/moodpoints-api/internal/repository"
	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu       sync.Mutex
	students []string
}

func (n *recordingNotifier) StudentActivity(studentID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.students = append(n.students, studentID)
}

type failingStore struct {
	*repository.MemoryStore
	err error
}

func (f failingStore) WithStudent(ctx context.Context, studentID string, fn func(repository.LedgerTx) error) error {
	return f.err
}

type engagementFixture struct {
	svc      *EngagementService
	store    *repository.MemoryStore
	clock    *fakeClock
	notifier *recordingNotifier
	metrics  *MetricsService
}

func newEngagementFixture(t *testing.T) engagementFixture {
	t.Helper()
	store := repository.NewMemoryStore(repository.DemoSeed())
	clock := newFakeClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	notifier := &recordingNotifier{}
	metrics := NewMetricsService()
	svc := NewEngagementService(EngagementParams{
		Store:       store,
		Submissions: store,
		Catalog:     NewRewardCatalog(store),
		Guard:       NewSubmissionGuard(24 * time.Hour),
		Notifier:    notifier,
		Clock:       clock,
		Metrics:     metrics,
	})
	return engagementFixture{svc: svc, store: store, clock: clock, notifier: notifier, metrics: metrics}
}

const testStudent = "student-6-2-01"

func submit(t *testing.T, f engagementFixture, emotion string) *dto.SubmitEmotionResult {
	t.Helper()
	result, err := f.svc.SubmitEmotion(context.Background(), dto.SubmitEmotionRequest{StudentID: testStudent, Emotion: emotion})
	require.NoError(t, err)
	return result
}

func redeem(t *testing.T, f engagementFixture, rewardID string) *dto.RedeemRewardResult {
	t.Helper()
	result, err := f.svc.RedeemReward(context.Background(), testStudent, dto.RedeemRewardRequest{RewardID: rewardID})
	require.NoError(t, err)
	return result
}

func TestEngagementServiceEndToEnd(t *testing.T) {
	f := newEngagementFixture(t)

	first := submit(t, f, "happy")
	assert.True(t, first.Accepted)
	assert.Equal(t, int64(10), first.PointsAwarded)
	assert.Equal(t, int64(10), first.Balance)
	require.NotNil(t, first.Submission)
	assert.Equal(t, models.EmotionHappy, first.Submission.Emotion)

	f.clock.Advance(5 * time.Hour)
	second := submit(t, f, "sad")
	assert.False(t, second.Accepted)
	assert.Equal(t, 19, second.HoursRemaining)
	assert.Equal(t, int64(10), second.Balance)

	poor := redeem(t, f, "reward-keychain")
	assert.Equal(t, dto.RedeemOutcomeInsufficientBalance, poor.Outcome)
	assert.Equal(t, int64(10), poor.RemainingBalance)
	assert.Nil(t, poor.Redemption)

	f.clock.Advance(20 * time.Hour)
	third := submit(t, f, "tired")
	assert.True(t, third.Accepted)
	assert.Equal(t, int64(20), third.Balance)

	bought := redeem(t, f, "reward-keychain")
	assert.Equal(t, dto.RedeemOutcomeRedeemed, bought.Outcome)
	assert.Equal(t, int64(0), bought.RemainingBalance)
	require.NotNil(t, bought.Redemption)
	assert.Equal(t, int64(20), bought.Redemption.Cost)

	subs, err := f.svc.Submissions(context.Background(), testStudent, 10)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, models.EmotionTired, subs[0].Emotion)

	assert.Equal(t, []string{testStudent, testStudent}, f.notifier.students)
	snapshot := f.metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.SubmissionsAccepted)
	assert.Equal(t, uint64(1), snapshot.SubmissionsRejected)
	assert.Equal(t, uint64(1), snapshot.Redemptions)
}

func TestEngagementServiceCooldownBoundary(t *testing.T) {
	f := newEngagementFixture(t)
	require.True(t, submit(t, f, "neutral").Accepted)

	f.clock.Advance(23*time.Hour + 59*time.Minute)
	rejected := submit(t, f, "neutral")
	assert.False(t, rejected.Accepted)
	assert.Equal(t, 1, rejected.HoursRemaining)

	f.clock.Advance(time.Minute)
	assert.True(t, submit(t, f, "neutral").Accepted)
}

func TestEngagementServiceRejectedSubmissionLeavesNoTrace(t *testing.T) {
	f := newEngagementFixture(t)
	require.True(t, submit(t, f, "happy").Accepted)
	f.clock.Advance(time.Hour)
	require.False(t, submit(t, f, "angry").Accepted)

	subs, err := f.svc.Submissions(context.Background(), testStudent, 10)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	balance, err := f.svc.Ledger().Balance(context.Background(), testStudent)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
	assert.Len(t, f.notifier.students, 1)
}

func TestEngagementServiceConcurrentSubmitsAcceptOnce(t *testing.T) {
	f := newEngagementFixture(t)

	var accepted int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.SubmitEmotion(context.Background(), dto.SubmitEmotionRequest{StudentID: testStudent, Emotion: "happy"})
			if err == nil && result.Accepted {
				atomic.AddInt32(&accepted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted)
	balance, err := f.svc.Ledger().Balance(context.Background(), testStudent)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
	subs, err := f.svc.Submissions(context.Background(), testStudent, 50)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestPointsLedgerConcurrentCreditDebitIsSerialisable(t *testing.T) {
	f := newEngagementFixture(t)
	ledger := f.svc.Ledger()
	ctx := context.Background()

	_, err := ledger.Credit(ctx, testStudent, 50)
	require.NoError(t, err)

	var debits int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = ledger.Credit(ctx, testStudent, 5)
		}()
		go func() {
			defer wg.Done()
			res, err := ledger.DebitIfAffordable(ctx, testStudent, 7)
			if err == nil && res.Success {
				atomic.AddInt64(&debits, 1)
			}
			if err == nil {
				assert.GreaterOrEqual(t, res.RemainingBalance, int64(0))
			}
		}()
	}
	wg.Wait()

	balance, err := ledger.Balance(ctx, testStudent)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, balance, int64(0))
	assert.Equal(t, int64(50+20*5)-7*atomic.LoadInt64(&debits), balance)
}

func TestPointsLedgerIntegrityViolations(t *testing.T) {
	f := newEngagementFixture(t)
	ledger := f.svc.Ledger()
	ctx := context.Background()

	_, err := ledger.Credit(ctx, testStudent, -1)
	assert.True(t, errors.Is(err, appErrors.ErrIntegrityViolation))

	_, err = ledger.DebitIfAffordable(ctx, testStudent, -5)
	assert.True(t, errors.Is(err, appErrors.ErrIntegrityViolation))

	_, err = ledger.Credit(ctx, testStudent, 1<<62)
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, testStudent, 1<<62)
	assert.True(t, errors.Is(err, appErrors.ErrIntegrityViolation))

	balance, err := ledger.Balance(ctx, testStudent)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<62), balance)
}

func TestPointsLedgerInsufficientDebitDoesNotMutate(t *testing.T) {
	f := newEngagementFixture(t)
	ledger := f.svc.Ledger()
	ctx := context.Background()

	_, err := ledger.Credit(ctx, testStudent, 5)
	require.NoError(t, err)
	res, err := ledger.DebitIfAffordable(ctx, testStudent, 6)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int64(5), res.RemainingBalance)
}

func TestEngagementServiceCancelledContextLeavesNothing(t *testing.T) {
	f := newEngagementFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.SubmitEmotion(ctx, dto.SubmitEmotionRequest{StudentID: testStudent, Emotion: "happy"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))

	subs, err := f.svc.Submissions(context.Background(), testStudent, 10)
	require.NoError(t, err)
	assert.Empty(t, subs)
	balance, err := f.svc.Ledger().Balance(context.Background(), testStudent)
	require.NoError(t, err)
	assert.Zero(t, balance)
	assert.Empty(t, f.notifier.students)
}

func TestEngagementServiceRedemptionKeepsHistoricalCost(t *testing.T) {
	f := newEngagementFixture(t)
	require.True(t, submit(t, f, "happy").Accepted)

	bought := redeem(t, f, "reward-pencil")
	require.Equal(t, dto.RedeemOutcomeRedeemed, bought.Outcome)

	f.store.PutReward(models.Reward{ID: "reward-pencil", Name: "Pencil", Cost: 15, Active: true})

	history, err := f.svc.Redemptions(context.Background(), testStudent, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(10), history[0].Cost)
}

func TestEngagementServiceUnknownReward(t *testing.T) {
	f := newEngagementFixture(t)
	result := redeem(t, f, "reward-unicorn")
	assert.Equal(t, dto.RedeemOutcomeRewardNotFound, result.Outcome)
	assert.Zero(t, result.RemainingBalance)
}

func TestEngagementServiceValidation(t *testing.T) {
	f := newEngagementFixture(t)

	_, err := f.svc.SubmitEmotion(context.Background(), dto.SubmitEmotionRequest{StudentID: testStudent, Emotion: "ecstatic"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.SubmitEmotion(context.Background(), dto.SubmitEmotionRequest{Emotion: "happy"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.RedeemReward(context.Background(), testStudent, dto.RedeemRewardRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestEngagementServiceNormalisesInput(t *testing.T) {
	f := newEngagementFixture(t)
	blank := "   "
	result, err := f.svc.SubmitEmotion(context.Background(), dto.SubmitEmotionRequest{StudentID: testStudent, Emotion: " Happy ", Note: &blank})
	require.NoError(t, err)
	require.True(t, result.Accepted)
	assert.Equal(t, models.EmotionHappy, result.Submission.Emotion)
	assert.Nil(t, result.Submission.Note)
}

func TestEngagementServiceStoreFailureIsUnavailable(t *testing.T) {
	store := repository.NewMemoryStore(repository.DemoSeed())
	svc := NewEngagementService(EngagementParams{
		Store:       failingStore{MemoryStore: store, err: errors.New("connection refused")},
		Submissions: store,
		Catalog:     NewRewardCatalog(store),
	})

	_, err := svc.SubmitEmotion(context.Background(), dto.SubmitEmotionRequest{StudentID: testStudent, Emotion: "happy"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErr.Code)
	assert.Equal(t, 503, appErr.Status)
}

func TestEngagementServiceCooldownStatus(t *testing.T) {
	f := newEngagementFixture(t)
	status, err := f.svc.Cooldown(context.Background(), testStudent)
	require.NoError(t, err)
	assert.True(t, status.CanSubmit)

	require.True(t, submit(t, f, "happy").Accepted)
	f.clock.Advance(3 * time.Hour)

	status, err = f.svc.Cooldown(context.Background(), testStudent)
	require.NoError(t, err)
	assert.False(t, status.CanSubmit)
	assert.Equal(t, 21, status.HoursRemaining)
	assert.Equal(t, int64(10), status.Balance)
}

func TestEngagementServiceAcceptsLongNote(t *testing.T) {
	f := newEngagementFixture(t)
	note := strings.Repeat("long day at school, ", 250)

	result, err := f.svc.SubmitEmotion(context.Background(), dto.SubmitEmotionRequest{StudentID: testStudent, Emotion: "tired", Note: &note})
	require.NoError(t, err)
	require.True(t, result.Accepted)
	assert.Equal(t, int64(10), result.Balance)

	subs, err := f.svc.Submissions(context.Background(), testStudent, 1)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NotNil(t, subs[0].Note)
	assert.Equal(t, strings.TrimSpace(note), *subs[0].Note)
	assert.Greater(t, len(*subs[0].Note), 4000)
}

func TestEngagementServiceCooldownReadsWithoutLedgerScope(t *testing.T) {
	store := repository.NewMemoryStore(repository.DemoSeed())
	clock := newFakeClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	seed := NewEngagementService(EngagementParams{Store: store, Submissions: store, Catalog: NewRewardCatalog(store), Clock: clock})
	require.True(t, submit(t, engagementFixture{svc: seed}, "happy").Accepted)
	clock.Advance(2 * time.Hour)

	svc := NewEngagementService(EngagementParams{
		Store:       failingStore{MemoryStore: store, err: errors.New("scope must not be taken")},
		Submissions: store,
		Catalog:     NewRewardCatalog(store),
		Clock:       clock,
	})
	status, err := svc.Cooldown(context.Background(), testStudent)
	require.NoError(t, err)
	assert.False(t, status.CanSubmit)
	assert.Equal(t, 22, status.HoursRemaining)
	assert.Equal(t, int64(10), status.Balance)
}

func TestEngagementServiceRegistersEmotionRule(t *testing.T) {
	v := validator.New()
	assert.NotPanics(t, func() {
		NewEngagementService(EngagementParams{Validator: v})
	})
	assert.NoError(t, v.Var("angry", "emotion"))
	assert.Error(t, v.Var("ecstatic", "emotion"))
}
