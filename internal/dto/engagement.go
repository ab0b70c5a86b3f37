package dto

import "github.com/noah-isme/moodpoints-api/internal/models"

// SubmitEmotionRequest is the payload of a check-in.
type SubmitEmotionRequest struct {
	StudentID string  `json:"-" validate:"required"`
	Emotion   string  `json:"emotion" validate:"required,emotion"`
	Note      *string `json:"note,omitempty"`
}

// SubmitEmotionResult reports either an accepted submission or an active cooldown.
type SubmitEmotionResult struct {
	Accepted       bool               `json:"accepted"`
	PointsAwarded  int64              `json:"points_awarded"`
	Balance        int64              `json:"balance"`
	HoursRemaining int                `json:"hours_remaining,omitempty"`
	Submission     *models.Submission `json:"submission,omitempty"`
}

// RedeemRewardRequest selects a catalog reward.
type RedeemRewardRequest struct {
	RewardID string `json:"reward_id" validate:"required"`
}

// RedeemOutcome tags the result of a redemption attempt.
type RedeemOutcome string

const (
	RedeemOutcomeRedeemed            RedeemOutcome = "redeemed"
	RedeemOutcomeInsufficientBalance RedeemOutcome = "insufficient_balance"
	RedeemOutcomeRewardNotFound      RedeemOutcome = "reward_not_found"
)

// RedeemRewardResult reports a redemption outcome. Redemption is set only when Outcome is redeemed.
type RedeemRewardResult struct {
	Outcome          RedeemOutcome            `json:"outcome"`
	RemainingBalance int64                    `json:"remaining_balance"`
	Cost             int64                    `json:"cost,omitempty"`
	Redemption       *models.RewardRedemption `json:"redemption,omitempty"`
}

// DebitResult is the outcome of a conditional debit.
type DebitResult struct {
	Success          bool  `json:"success"`
	RemainingBalance int64 `json:"remaining_balance"`
}

// CooldownStatus exposes the guard decision for the current student.
type CooldownStatus struct {
	CanSubmit      bool  `json:"can_submit"`
	HoursRemaining int   `json:"hours_remaining,omitempty"`
	Balance        int64 `json:"balance"`
}
