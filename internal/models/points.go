package models

import "time"

// PointsAccount holds a student's spendable balance. Balance is never negative.
type PointsAccount struct {
	StudentID string    `db:"student_id" json:"student_id"`
	Balance   int64     `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Reward is a redeemable catalog item.
type Reward struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Cost        int64  `db:"cost" json:"cost"`
	Description string `db:"description" json:"description"`
	ImageURL    string `db:"image_url" json:"image_url,omitempty"`
	Active      bool   `db:"active" json:"active"`
}

// RewardRedemption records a successful debit. Cost is the catalog cost at redemption time.
type RewardRedemption struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	RewardID   string    `db:"reward_id" json:"reward_id"`
	Cost       int64     `db:"cost" json:"cost"`
	RedeemedAt time.Time `db:"redeemed_at" json:"redeemed_at"`
}
