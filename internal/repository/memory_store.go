package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/moodpoints-api/internal/models"
)

// MemoryStore is a process-local store implementing the ledger, submission, reward and roster reads.
// Each student's ledger is guarded by its own lock so unrelated students never contend.
type MemoryStore struct {
	ledgers sync.Map // student id -> *studentLedger

	mu       sync.RWMutex
	teachers map[string]models.Teacher
	classes  map[string]models.Class
	students map[string]models.Student
	rewards  map[string]models.Reward
}

type studentLedger struct {
	lock        chan struct{}
	balance     int64
	submissions []models.Submission
	redemptions []models.RewardRedemption
}

// NewMemoryStore builds a store preloaded with the seed.
func NewMemoryStore(seed Seed) *MemoryStore {
	s := &MemoryStore{
		teachers: make(map[string]models.Teacher, len(seed.Teachers)),
		classes:  make(map[string]models.Class, len(seed.Classes)),
		students: make(map[string]models.Student, len(seed.Students)),
		rewards:  make(map[string]models.Reward, len(seed.Rewards)),
	}
	for _, t := range seed.Teachers {
		s.teachers[t.ID] = t
	}
	for _, c := range seed.Classes {
		s.classes[c.ID] = c
	}
	for _, st := range seed.Students {
		s.students[st.ID] = st
	}
	for _, r := range seed.Rewards {
		s.rewards[r.ID] = r
	}
	return s
}

// PutReward inserts or replaces a catalog entry.
func (s *MemoryStore) PutReward(reward models.Reward) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewards[reward.ID] = reward
}

func (s *MemoryStore) ledger(studentID string) *studentLedger {
	if existing, ok := s.ledgers.Load(studentID); ok {
		return existing.(*studentLedger)
	}
	fresh := &studentLedger{lock: make(chan struct{}, 1)}
	actual, _ := s.ledgers.LoadOrStore(studentID, fresh)
	return actual.(*studentLedger)
}

func (l *studentLedger) acquire(ctx context.Context) error {
	select {
	case l.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *studentLedger) release() {
	<-l.lock
}

// WithStudent runs fn with exclusive access to the student's ledger.
// Staged writes are applied only when fn succeeds and the context is still live.
func (s *MemoryStore) WithStudent(ctx context.Context, studentID string, fn func(LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.ledger(studentID)
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()

	tx := &memoryLedgerTx{ledger: l, studentID: studentID, balance: l.balance}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.balance = tx.balance
	l.submissions = append(l.submissions, tx.submissions...)
	l.redemptions = append(l.redemptions, tx.redemptions...)
	return nil
}

// Balance returns the committed balance.
func (s *MemoryStore) Balance(ctx context.Context, studentID string) (int64, error) {
	l := s.ledger(studentID)
	if err := l.acquire(ctx); err != nil {
		return 0, err
	}
	defer l.release()
	return l.balance, nil
}

// ListRedemptions returns the student's redemptions, latest first.
func (s *MemoryStore) ListRedemptions(ctx context.Context, studentID string, limit int) ([]models.RewardRedemption, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	l := s.ledger(studentID)
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()

	result := make([]models.RewardRedemption, 0, minInt(limit, len(l.redemptions)))
	for i := len(l.redemptions) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, l.redemptions[i])
	}
	return result, nil
}

// ListByStudents returns submissions in [From, To] for the given students, oldest first.
func (s *MemoryStore) ListByStudents(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	result := make([]models.Submission, 0)
	for _, id := range filter.StudentIDs {
		l := s.ledger(id)
		if err := l.acquire(ctx); err != nil {
			return nil, err
		}
		for _, sub := range l.submissions {
			if !filter.From.IsZero() && sub.SubmittedAt.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && sub.SubmittedAt.After(filter.To) {
				continue
			}
			result = append(result, sub)
		}
		l.release()
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SubmittedAt.Before(result[j].SubmittedAt)
	})
	return result, nil
}

// ListByStudent returns the student's latest submissions, newest first.
func (s *MemoryStore) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	l := s.ledger(studentID)
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()

	result := make([]models.Submission, 0, minInt(limit, len(l.submissions)))
	for i := len(l.submissions) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, l.submissions[i])
	}
	return result, nil
}

// SubmittedSince reports which students have a submission at or after cutoff.
func (s *MemoryStore) SubmittedSince(ctx context.Context, studentIDs []string, cutoff time.Time) (map[string]bool, error) {
	result := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		l := s.ledger(id)
		if err := l.acquire(ctx); err != nil {
			return nil, err
		}
		submitted := false
		for i := len(l.submissions) - 1; i >= 0; i-- {
			if !l.submissions[i].SubmittedAt.Before(cutoff) {
				submitted = true
				break
			}
		}
		l.release()
		result[id] = submitted
	}
	return result, nil
}

// ListActive returns active rewards ordered by cost.
func (s *MemoryStore) ListActive(ctx context.Context) ([]models.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rewards := make([]models.Reward, 0, len(s.rewards))
	for _, r := range s.rewards {
		if r.Active {
			rewards = append(rewards, r)
		}
	}
	sort.Slice(rewards, func(i, j int) bool {
		if rewards[i].Cost != rewards[j].Cost {
			return rewards[i].Cost < rewards[j].Cost
		}
		return rewards[i].Name < rewards[j].Name
	})
	return rewards, nil
}

// FindByID returns an active reward or sql.ErrNoRows.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*models.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reward, ok := s.rewards[id]
	if !ok || !reward.Active {
		return nil, sql.ErrNoRows
	}
	return &reward, nil
}

// FindClass returns a class or sql.ErrNoRows.
func (s *MemoryStore) FindClass(ctx context.Context, id string) (*models.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	class, ok := s.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &class, nil
}

// StudentsInClass lists class members ordered by name.
func (s *MemoryStore) StudentsInClass(ctx context.Context, classID string) ([]models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	students := make([]models.Student, 0)
	for _, st := range s.students {
		if st.ClassID == classID {
			students = append(students, st)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Name != students[j].Name {
			return students[i].Name < students[j].Name
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

// FindStudent returns a student or sql.ErrNoRows.
func (s *MemoryStore) FindStudent(ctx context.Context, id string) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

// FindTeacher returns a teacher or sql.ErrNoRows.
func (s *MemoryStore) FindTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

// ClassIDsForTeacher lists the classes a teacher is responsible for.
func (s *MemoryStore) ClassIDsForTeacher(ctx context.Context, teacherID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0)
	for _, c := range s.classes {
		if c.TeacherID == teacherID {
			ids = append(ids, c.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type memoryLedgerTx struct {
	ledger      *studentLedger
	studentID   string
	balance     int64
	submissions []models.Submission
	redemptions []models.RewardRedemption
}

func (t *memoryLedgerTx) StudentID() string { return t.studentID }

func (t *memoryLedgerTx) Balance() int64 { return t.balance }

func (t *memoryLedgerTx) LatestSubmission(ctx context.Context) (*models.Submission, error) {
	var latest *models.Submission
	consider := func(sub models.Submission) {
		if latest == nil || sub.SubmittedAt.After(latest.SubmittedAt) {
			copied := sub
			latest = &copied
		}
	}
	for _, sub := range t.ledger.submissions {
		consider(sub)
	}
	for _, sub := range t.submissions {
		consider(sub)
	}
	return latest, nil
}

func (t *memoryLedgerTx) AppendSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.StudentID != t.studentID {
		return fmt.Errorf("submission for %s appended in scope of %s", submission.StudentID, t.studentID)
	}
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	submission.SubmittedAt = submission.SubmittedAt.UTC()
	t.submissions = append(t.submissions, *submission)
	return nil
}

func (t *memoryLedgerTx) SetBalance(ctx context.Context, balance int64) error {
	if balance < 0 {
		return ErrNegativeBalance
	}
	t.balance = balance
	return nil
}

func (t *memoryLedgerTx) RecordRedemption(ctx context.Context, redemption *models.RewardRedemption) error {
	if redemption.StudentID != t.studentID {
		return fmt.Errorf("redemption for %s recorded in scope of %s", redemption.StudentID, t.studentID)
	}
	if redemption.ID == "" {
		redemption.ID = uuid.NewString()
	}
	redemption.RedeemedAt = redemption.RedeemedAt.UTC()
	t.redemptions = append(t.redemptions, *redemption)
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
