package models

import (
	"fmt"
	"strings"
	"time"
)

// Emotion enumerates the moods a student can check in with.
type Emotion string

const (
	EmotionHappy   Emotion = "happy"
	EmotionNeutral Emotion = "neutral"
	EmotionSad     Emotion = "sad"
	EmotionAngry   Emotion = "angry"
	EmotionTired   Emotion = "tired"
)

// CanonicalEmotions lists every emotion in canonical order. Rankings break ties by this order.
var CanonicalEmotions = []Emotion{EmotionHappy, EmotionNeutral, EmotionSad, EmotionAngry, EmotionTired}

// Valid reports whether the emotion belongs to the enumerated set.
func (e Emotion) Valid() bool {
	return e.rank() >= 0
}

func (e Emotion) rank() int {
	for i, candidate := range CanonicalEmotions {
		if candidate == e {
			return i
		}
	}
	return -1
}

// CanonicalLess orders two emotions by the canonical ordering.
func CanonicalLess(a, b Emotion) bool {
	return a.rank() < b.rank()
}

// ParseEmotion normalises user input into an Emotion.
func ParseEmotion(raw string) (Emotion, error) {
	e := Emotion(strings.ToLower(strings.TrimSpace(raw)))
	if !e.Valid() {
		return "", fmt.Errorf("unknown emotion %q", raw)
	}
	return e, nil
}

// Submission is one recorded emotion check-in. Rows are append-only.
type Submission struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Emotion     Emotion   `db:"emotion" json:"emotion"`
	Note        *string   `db:"note" json:"note,omitempty"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

// SubmissionFilter scopes read-side submission scans.
type SubmissionFilter struct {
	StudentIDs []string
	From       time.Time
	To         time.Time
}
