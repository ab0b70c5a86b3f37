package dto

import (
	"time"

	"github.com/noah-isme/moodpoints-api/internal/models"
)

// InsightEmotionShare is one ranked emotion with its share of the window.
type InsightEmotionShare struct {
	Emotion    models.Emotion `json:"emotion"`
	Count      int            `json:"count"`
	Percentage float64        `json:"percentage"`
}

// InsightPayload is the structured context handed to a text-generation collaborator.
// It carries aggregates only, never notes or student identities.
type InsightPayload struct {
	ClassID             string                `json:"class_id"`
	WindowDays          int                   `json:"window_days"`
	From                time.Time             `json:"from"`
	To                  time.Time             `json:"to"`
	StudentCount        int                   `json:"student_count"`
	TotalEmotions       int                   `json:"total_emotions"`
	Emotions            []InsightEmotionShare `json:"emotions"`
	DailyTrends         []models.DailyTrend   `json:"daily_trends"`
	SubmittedToday      int                   `json:"submitted_today"`
	SubmissionRateToday float64               `json:"submission_rate_today"`
	Locale              string                `json:"locale"`
}
