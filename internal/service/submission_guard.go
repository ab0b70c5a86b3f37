package service

import (
	"context"
	"time"

	"github.com/noah-isme/moodpoints-api/internal/models"
)

// DefaultSubmissionCooldown is the minimum spacing between two submissions of one student.
const DefaultSubmissionCooldown = 24 * time.Hour

// LatestSubmissionFinder looks up a student's most recent submission.
type LatestSubmissionFinder interface {
	LatestSubmission(ctx context.Context) (*models.Submission, error)
}

// GuardDecision is the outcome of a cooldown check.
type GuardDecision struct {
	Allowed        bool
	HoursRemaining int
	LastSubmitted  *time.Time
}

// SubmissionGuard enforces the submission cooldown.
type SubmissionGuard struct {
	cooldown time.Duration
}

// NewSubmissionGuard constructs a guard. Non-positive cooldowns fall back to 24h.
func NewSubmissionGuard(cooldown time.Duration) *SubmissionGuard {
	if cooldown <= 0 {
		cooldown = DefaultSubmissionCooldown
	}
	return &SubmissionGuard{cooldown: cooldown}
}

// Cooldown returns the configured spacing.
func (g *SubmissionGuard) Cooldown() time.Duration {
	return g.cooldown
}

// Evaluate decides from the last submission time alone. A last submission at or after now
// counts as zero elapsed time.
func (g *SubmissionGuard) Evaluate(last *time.Time, now time.Time) GuardDecision {
	if last == nil {
		return GuardDecision{Allowed: true}
	}
	elapsed := now.Sub(*last)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= g.cooldown {
		return GuardDecision{Allowed: true, LastSubmitted: last}
	}
	return GuardDecision{
		Allowed:        false,
		HoursRemaining: hoursCeil(g.cooldown - elapsed),
		LastSubmitted:  last,
	}
}

// Check loads the latest submission through finder and evaluates it.
// Must run inside the student's exclusive scope for the decision to hold at append time.
func (g *SubmissionGuard) Check(ctx context.Context, finder LatestSubmissionFinder, now time.Time) (GuardDecision, error) {
	last, err := finder.LatestSubmission(ctx)
	if err != nil {
		return GuardDecision{}, err
	}
	if last == nil {
		return g.Evaluate(nil, now), nil
	}
	at := last.SubmittedAt
	return g.Evaluate(&at, now), nil
}

func hoursCeil(d time.Duration) int {
	hours := int(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return hours
}
