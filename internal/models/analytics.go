package models

import "time"

// EmotionCount pairs an emotion with its tally.
type EmotionCount struct {
	Emotion Emotion `json:"emotion"`
	Count   int     `json:"count"`
}

// DailyTrend is the distribution restricted to one reporting day.
type DailyTrend struct {
	Date         string          `json:"date"`
	Distribution map[Emotion]int `json:"distribution"`
	Total        int             `json:"total"`
}

// AnalyticsSnapshot is the derived, read-only view over a class and time window.
type AnalyticsSnapshot struct {
	ClassID             string          `json:"class_id"`
	WindowDays          int             `json:"window_days"`
	From                time.Time       `json:"from"`
	To                  time.Time       `json:"to"`
	Timezone            string          `json:"timezone"`
	StudentCount        int             `json:"student_count"`
	EmotionDistribution map[Emotion]int `json:"emotion_distribution"`
	TotalEmotions       int             `json:"total_emotions"`
	RankedEmotions      []EmotionCount  `json:"ranked_emotions"`
	TopEmotion          *Emotion        `json:"top_emotion,omitempty"`
	DailyTrends         []DailyTrend    `json:"daily_trends"`
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	SubmissionsAccepted      uint64    `json:"submissions_accepted"`
	SubmissionsRejected      uint64    `json:"submissions_rejected"`
	Redemptions              uint64    `json:"redemptions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
