package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/moodpoints-api/internal/dto"
	"github.com/noah-isme/moodpoints-api/internal/models"
	"github.com/noah-isme/moodpoints-api/internal/repository"
	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
)

// DefaultPointsPerSubmission is credited for every accepted check-in.
const DefaultPointsPerSubmission int64 = 10

// EngagementParams wires the EngagementService collaborators.
type EngagementParams struct {
	Store               LedgerStore
	Submissions         SubmissionReader
	Catalog             *RewardCatalog
	Guard               *SubmissionGuard
	Notifier            StudentActivityNotifier
	Clock               Clock
	Validator           *validator.Validate
	Metrics             *MetricsService
	Logger              *zap.Logger
	PointsPerSubmission int64
}

// EngagementService runs the student-facing write paths: emotion check-ins and reward redemptions.
type EngagementService struct {
	store       LedgerStore
	ledger      *PointsLedger
	submissions SubmissionReader
	catalog     *RewardCatalog
	guard       *SubmissionGuard
	notifier    StudentActivityNotifier
	clock       Clock
	validator   *validator.Validate
	metrics     *MetricsService
	logger      *zap.Logger
	points      int64
}

// NewEngagementService constructs the service.
func NewEngagementService(p EngagementParams) *EngagementService {
	if p.Validator == nil {
		p.Validator = validator.New()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Clock == nil {
		p.Clock = SystemClock{}
	}
	if p.Guard == nil {
		p.Guard = NewSubmissionGuard(DefaultSubmissionCooldown)
	}
	if p.PointsPerSubmission <= 0 {
		p.PointsPerSubmission = DefaultPointsPerSubmission
	}
	svc := &EngagementService{
		store:       p.Store,
		ledger:      NewPointsLedger(p.Store, p.Logger),
		submissions: p.Submissions,
		catalog:     p.Catalog,
		guard:       p.Guard,
		notifier:    p.Notifier,
		clock:       p.Clock,
		validator:   p.Validator,
		metrics:     p.Metrics,
		logger:      p.Logger,
		points:      p.PointsPerSubmission,
	}
	if err := svc.validator.RegisterValidation("emotion", func(fl validator.FieldLevel) bool {
		_, err := models.ParseEmotion(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("register emotion validation: %v", err))
	}
	return svc
}

// Ledger exposes the points ledger used by the service.
func (s *EngagementService) Ledger() *PointsLedger {
	return s.ledger
}

// SubmitEmotion records a check-in and credits points as one unit, unless the cooldown is active.
// An active cooldown is reported through the result, not as an error.
func (s *EngagementService) SubmitEmotion(ctx context.Context, req dto.SubmitEmotionRequest) (*dto.SubmitEmotionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	emotion, err := models.ParseEmotion(req.Emotion)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid emotion")
	}
	note := normaliseNote(req.Note)
	now := s.clock.Now().UTC()

	var result dto.SubmitEmotionResult
	start := time.Now()
	err = s.store.WithStudent(ctx, req.StudentID, func(tx repository.LedgerTx) error {
		decision, err := s.guard.Check(ctx, tx, now)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			result = dto.SubmitEmotionResult{Accepted: false, HoursRemaining: decision.HoursRemaining, Balance: tx.Balance()}
			return nil
		}

		submission := &models.Submission{StudentID: req.StudentID, Emotion: emotion, Note: note, SubmittedAt: now}
		if err := tx.AppendSubmission(ctx, submission); err != nil {
			return err
		}
		balance, err := s.ledger.CreditTx(ctx, tx, s.points)
		if err != nil {
			return err
		}
		result = dto.SubmitEmotionResult{Accepted: true, PointsAwarded: s.points, Balance: balance, Submission: submission}
		return nil
	})
	s.metrics.ObserveDBQuery("ledger_submit", time.Since(start))
	if err != nil {
		return nil, s.ledger.ledgerFailure(req.StudentID, err)
	}

	s.metrics.RecordSubmission(result.Accepted, result.PointsAwarded)
	if !result.Accepted {
		s.logger.Info("submission rejected: cooldown active",
			zap.String("student_id", req.StudentID),
			zap.Int("hours_remaining", result.HoursRemaining))
		return &result, nil
	}

	s.logger.Info("submission accepted",
		zap.String("student_id", req.StudentID),
		zap.String("emotion", string(emotion)),
		zap.Int64("balance", result.Balance))
	if s.notifier != nil {
		s.notifier.StudentActivity(req.StudentID)
	}
	return &result, nil
}

// RedeemReward debits the reward's current cost and records the redemption as one unit.
// Unknown rewards and insufficient balances are reported through the result's outcome.
func (s *EngagementService) RedeemReward(ctx context.Context, studentID string, req dto.RedeemRewardRequest) (*dto.RedeemRewardResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}

	cost, err := s.catalog.GetCost(ctx, req.RewardID)
	if err != nil {
		if errors.Is(err, appErrors.ErrRewardNotFound) {
			balance, balErr := s.ledger.Balance(ctx, studentID)
			if balErr != nil {
				return nil, balErr
			}
			s.metrics.RecordRedemption(string(dto.RedeemOutcomeRewardNotFound), 0)
			s.logger.Info("redemption rejected: reward not found", zap.String("student_id", studentID), zap.String("reward_id", req.RewardID))
			return &dto.RedeemRewardResult{Outcome: dto.RedeemOutcomeRewardNotFound, RemainingBalance: balance}, nil
		}
		return nil, err
	}

	now := s.clock.Now().UTC()
	var result dto.RedeemRewardResult
	start := time.Now()
	err = s.store.WithStudent(ctx, studentID, func(tx repository.LedgerTx) error {
		debit, err := s.ledger.DebitTx(ctx, tx, cost)
		if err != nil {
			return err
		}
		if !debit.Success {
			result = dto.RedeemRewardResult{Outcome: dto.RedeemOutcomeInsufficientBalance, RemainingBalance: debit.RemainingBalance, Cost: cost}
			return nil
		}
		redemption := &models.RewardRedemption{StudentID: studentID, RewardID: req.RewardID, Cost: cost, RedeemedAt: now}
		if err := tx.RecordRedemption(ctx, redemption); err != nil {
			return err
		}
		result = dto.RedeemRewardResult{Outcome: dto.RedeemOutcomeRedeemed, RemainingBalance: debit.RemainingBalance, Cost: cost, Redemption: redemption}
		return nil
	})
	s.metrics.ObserveDBQuery("ledger_redeem", time.Since(start))
	if err != nil {
		return nil, s.ledger.ledgerFailure(studentID, err)
	}

	s.metrics.RecordRedemption(string(result.Outcome), result.Cost)
	s.logger.Info("redemption processed",
		zap.String("student_id", studentID),
		zap.String("reward_id", req.RewardID),
		zap.String("outcome", string(result.Outcome)),
		zap.Int64("remaining_balance", result.RemainingBalance))
	return &result, nil
}

// Cooldown reports whether the student may submit now, with the current balance.
// It reads without taking the student's ledger scope, so polling never blocks a submit.
func (s *EngagementService) Cooldown(ctx context.Context, studentID string) (*dto.CooldownStatus, error) {
	now := s.clock.Now().UTC()
	decision, err := s.guard.Check(ctx, latestFromHistory{reader: s.submissions, studentID: studentID}, now)
	if err != nil {
		return nil, appErrors.Unavailable(err, "submission store unavailable")
	}
	balance, err := s.ledger.Balance(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &dto.CooldownStatus{CanSubmit: decision.Allowed, HoursRemaining: decision.HoursRemaining, Balance: balance}, nil
}

// latestFromHistory answers the guard from the newest row of the student's history.
type latestFromHistory struct {
	reader    SubmissionReader
	studentID string
}

func (l latestFromHistory) LatestSubmission(ctx context.Context) (*models.Submission, error) {
	subs, err := l.reader.ListByStudent(ctx, l.studentID, 1)
	if err != nil || len(subs) == 0 {
		return nil, err
	}
	return &subs[0], nil
}

// Submissions lists the student's own recent check-ins, newest first.
func (s *EngagementService) Submissions(ctx context.Context, studentID string, limit int) ([]models.Submission, error) {
	subs, err := s.submissions.ListByStudent(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Unavailable(err, "submission store unavailable")
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	return subs, nil
}

// Redemptions lists the student's redemptions, newest first.
func (s *EngagementService) Redemptions(ctx context.Context, studentID string, limit int) ([]models.RewardRedemption, error) {
	redemptions, err := s.store.ListRedemptions(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Unavailable(err, "points ledger unavailable")
	}
	if redemptions == nil {
		redemptions = []models.RewardRedemption{}
	}
	return redemptions, nil
}

// Rewards lists the active catalog.
func (s *EngagementService) Rewards(ctx context.Context) ([]models.Reward, error) {
	return s.catalog.List(ctx)
}

func normaliseNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
