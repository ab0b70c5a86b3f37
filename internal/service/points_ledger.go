package service

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/moodpoints-api/internal/dto"
	"github.com/noah-isme/moodpoints-api/internal/models"
	"github.com/noah-isme/moodpoints-api/internal/repository"
	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
)

// LedgerStore serialises all writes of a student through WithStudent.
type LedgerStore interface {
	WithStudent(ctx context.Context, studentID string, fn func(repository.LedgerTx) error) error
	Balance(ctx context.Context, studentID string) (int64, error)
	ListRedemptions(ctx context.Context, studentID string, limit int) ([]models.RewardRedemption, error)
}

// PointsLedger owns balance arithmetic. Every mutation happens inside the student's exclusive scope.
type PointsLedger struct {
	store  LedgerStore
	logger *zap.Logger
}

// NewPointsLedger constructs a ledger over store.
func NewPointsLedger(store LedgerStore, logger *zap.Logger) *PointsLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PointsLedger{store: store, logger: logger}
}

// Balance returns the committed balance, zero for unknown students.
func (l *PointsLedger) Balance(ctx context.Context, studentID string) (int64, error) {
	balance, err := l.store.Balance(ctx, studentID)
	if err != nil {
		return 0, appErrors.Unavailable(err, "failed to read points balance")
	}
	return balance, nil
}

// Credit adds amount to the student's balance and returns the new balance.
func (l *PointsLedger) Credit(ctx context.Context, studentID string, amount int64) (int64, error) {
	var balance int64
	err := l.store.WithStudent(ctx, studentID, func(tx repository.LedgerTx) error {
		var err error
		balance, err = l.CreditTx(ctx, tx, amount)
		return err
	})
	if err != nil {
		return 0, l.ledgerFailure(studentID, err)
	}
	return balance, nil
}

// DebitIfAffordable subtracts amount when the balance covers it. Insufficient funds leave the balance untouched.
func (l *PointsLedger) DebitIfAffordable(ctx context.Context, studentID string, amount int64) (dto.DebitResult, error) {
	var result dto.DebitResult
	err := l.store.WithStudent(ctx, studentID, func(tx repository.LedgerTx) error {
		var err error
		result, err = l.DebitTx(ctx, tx, amount)
		return err
	})
	if err != nil {
		return dto.DebitResult{}, l.ledgerFailure(studentID, err)
	}
	return result, nil
}

// CreditTx credits within an already open exclusive scope.
func (l *PointsLedger) CreditTx(ctx context.Context, tx repository.LedgerTx, amount int64) (int64, error) {
	current := tx.Balance()
	if amount < 0 {
		return current, appErrors.Integrity("credit amount must not be negative")
	}
	if current < 0 {
		return current, appErrors.Integrity("stored balance is negative")
	}
	if current > math.MaxInt64-amount {
		return current, appErrors.Integrity("credit would overflow balance")
	}
	next := current + amount
	if err := tx.SetBalance(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}

// DebitTx debits within an already open exclusive scope.
func (l *PointsLedger) DebitTx(ctx context.Context, tx repository.LedgerTx, amount int64) (dto.DebitResult, error) {
	current := tx.Balance()
	if amount < 0 {
		return dto.DebitResult{RemainingBalance: current}, appErrors.Integrity("debit amount must not be negative")
	}
	if current < 0 {
		return dto.DebitResult{RemainingBalance: current}, appErrors.Integrity("stored balance is negative")
	}
	if current < amount {
		return dto.DebitResult{Success: false, RemainingBalance: current}, nil
	}
	next := current - amount
	if err := tx.SetBalance(ctx, next); err != nil {
		return dto.DebitResult{RemainingBalance: current}, err
	}
	return dto.DebitResult{Success: true, RemainingBalance: next}, nil
}

// ledgerFailure maps errors escaping a WithStudent scope. Typed errors pass through,
// negative-balance writes are integrity violations and anything else is a collaborator failure.
func (l *PointsLedger) ledgerFailure(studentID string, err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		if appErr.Is(appErrors.ErrIntegrityViolation) {
			l.logger.Error("ledger integrity violation", zap.String("student_id", studentID), zap.Error(err))
		}
		return appErr
	}
	if errors.Is(err, repository.ErrNegativeBalance) {
		l.logger.Error("ledger integrity violation", zap.String("student_id", studentID), zap.Error(err))
		return appErrors.Integrity("balance would become negative")
	}
	l.logger.Warn("ledger unavailable", zap.String("student_id", studentID), zap.Error(err))
	return appErrors.Unavailable(err, "points ledger unavailable, retry later")
}
