package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/moodpoints-api/internal/models"
)

// ErrNegativeBalance is returned when a write would leave a points account below zero.
var ErrNegativeBalance = errors.New("points balance cannot be negative")

// LedgerTx is the exclusive view of one student's ledger handed out by WithStudent.
// Writes become visible only if the enclosing WithStudent call returns nil.
type LedgerTx interface {
	StudentID() string
	// LatestSubmission returns the student's most recent submission, or nil when there is none.
	LatestSubmission(ctx context.Context) (*models.Submission, error)
	AppendSubmission(ctx context.Context, submission *models.Submission) error
	// Balance returns the balance as seen inside the exclusive scope.
	Balance() int64
	SetBalance(ctx context.Context, balance int64) error
	RecordRedemption(ctx context.Context, redemption *models.RewardRedemption) error
}

// LedgerRepository owns the points_accounts, emotion_submissions and reward_redemptions write path.
type LedgerRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db, now: time.Now}
}

// WithStudent runs fn inside a transaction holding the row lock of the student's points account.
// The account is created at zero on first use. Any error from fn, or a cancelled context, rolls back.
func (r *LedgerRepository) WithStudent(ctx context.Context, studentID string, fn func(LedgerTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const ensure = `INSERT INTO points_accounts (student_id, balance, updated_at) VALUES ($1, 0, $2)
ON CONFLICT (student_id) DO NOTHING`
	if _, err = tx.ExecContext(ctx, ensure, studentID, r.now().UTC()); err != nil {
		return fmt.Errorf("ensure points account: %w", err)
	}

	var balance int64
	const lock = `SELECT balance FROM points_accounts WHERE student_id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &balance, lock, studentID); err != nil {
		return fmt.Errorf("lock points account: %w", err)
	}

	ltx := &sqlLedgerTx{tx: tx, studentID: studentID, balance: balance, now: r.now}
	if err = fn(ltx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// Balance returns the current balance, zero for students without an account.
func (r *LedgerRepository) Balance(ctx context.Context, studentID string) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance, `SELECT balance FROM points_accounts WHERE student_id = $1`, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// ListRedemptions returns the student's redemptions, latest first.
func (r *LedgerRepository) ListRedemptions(ctx context.Context, studentID string, limit int) ([]models.RewardRedemption, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `SELECT id, student_id, reward_id, cost, redeemed_at FROM reward_redemptions
WHERE student_id = $1 ORDER BY redeemed_at DESC LIMIT $2`
	var redemptions []models.RewardRedemption
	if err := r.db.SelectContext(ctx, &redemptions, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	return redemptions, nil
}

type sqlLedgerTx struct {
	tx        *sqlx.Tx
	studentID string
	balance   int64
	now       func() time.Time
}

func (t *sqlLedgerTx) StudentID() string { return t.studentID }

func (t *sqlLedgerTx) Balance() int64 { return t.balance }

func (t *sqlLedgerTx) LatestSubmission(ctx context.Context) (*models.Submission, error) {
	const query = `SELECT id, student_id, emotion, note, submitted_at FROM emotion_submissions
WHERE student_id = $1 ORDER BY submitted_at DESC LIMIT 1`
	var submission models.Submission
	if err := t.tx.GetContext(ctx, &submission, query, t.studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last submission: %w", err)
	}
	return &submission, nil
}

func (t *sqlLedgerTx) AppendSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.StudentID != t.studentID {
		return fmt.Errorf("submission for %s appended in scope of %s", submission.StudentID, t.studentID)
	}
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	submission.SubmittedAt = submission.SubmittedAt.UTC()
	const query = `INSERT INTO emotion_submissions (id, student_id, emotion, note, submitted_at)
VALUES (:id, :student_id, :emotion, :note, :submitted_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (t *sqlLedgerTx) SetBalance(ctx context.Context, balance int64) error {
	if balance < 0 {
		return ErrNegativeBalance
	}
	const query = `UPDATE points_accounts SET balance = $1, updated_at = $2 WHERE student_id = $3`
	if _, err := t.tx.ExecContext(ctx, query, balance, t.now().UTC(), t.studentID); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	t.balance = balance
	return nil
}

func (t *sqlLedgerTx) RecordRedemption(ctx context.Context, redemption *models.RewardRedemption) error {
	if redemption.StudentID != t.studentID {
		return fmt.Errorf("redemption for %s recorded in scope of %s", redemption.StudentID, t.studentID)
	}
	if redemption.ID == "" {
		redemption.ID = uuid.NewString()
	}
	redemption.RedeemedAt = redemption.RedeemedAt.UTC()
	const query = `INSERT INTO reward_redemptions (id, student_id, reward_id, cost, redeemed_at)
VALUES (:id, :student_id, :reward_id, :cost, :redeemed_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, redemption); err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}
