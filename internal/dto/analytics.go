package dto

import "time"

// StudentSubmissionStatus flags whether a student checked in during the current reporting day.
type StudentSubmissionStatus struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Submitted bool   `json:"submitted"`
}

// ClassSubmissionStatus is the batched "submitted today" view for a class.
type ClassSubmissionStatus struct {
	ClassID        string                    `json:"class_id"`
	Date           string                    `json:"date"`
	Cutoff         time.Time                 `json:"cutoff"`
	Students       []StudentSubmissionStatus `json:"students"`
	SubmittedCount int                       `json:"submitted_count"`
	Total          int                       `json:"total"`
	Rate           float64                   `json:"rate"`
}
