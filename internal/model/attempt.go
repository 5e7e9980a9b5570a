package model

import (
	"time"
)

// AttemptMode enumerates the two ways an attempt can be taken.
type AttemptMode string

const (
	ModePractice AttemptMode = "practice"
	ModeTimed    AttemptMode = "timed"
)

// AttemptMeta is the authoritative record of one exam attempt as reported
// by the exam backend. It is immutable client-side except for the
// submission fields, which only ever flip from unsubmitted to submitted.
type AttemptMeta struct {
	AttemptID        int64       `json:"attempt_id"`
	Mode             AttemptMode `json:"mode"`
	ExamName         *string     `json:"exam_name,omitempty"`
	QuestionCount    int         `json:"question_count"`
	TimeLimitSeconds *int        `json:"time_limit_seconds,omitempty"`
	StartedAt        time.Time   `json:"started_at"`
	SubmittedAt      *time.Time  `json:"submitted_at,omitempty"`
	IsSubmitted      bool        `json:"is_submitted"`
	ScorePercent     *int        `json:"score_percent,omitempty"`
	Passed           *bool       `json:"passed,omitempty"`
}

// Timed reports whether this attempt carries a countdown. Practice attempts
// never do, even if the backend echoes a stale time limit.
func (m *AttemptMeta) Timed() bool {
	return m.Mode == ModeTimed && m.TimeLimitSeconds != nil
}

// StartAttemptRequest is the payload for creating a new attempt.
type StartAttemptRequest struct {
	Mode             AttemptMode `json:"mode" binding:"required,oneof=practice timed"`
	ExamName         *string     `json:"exam_name"`
	QuestionCount    int         `json:"question_count" binding:"omitempty,min=1,max=300"`
	TimeLimitSeconds *int        `json:"time_limit_seconds" binding:"omitempty,min=60"`
}

// RecordAnswerRequest is the payload for recording a selected choice.
// Position ties the write back to the answered-position set; the backend
// itself is keyed by question_id.
type RecordAnswerRequest struct {
	Position      int    `json:"position" binding:"required,min=1"`
	QuestionID    int64  `json:"question_id" binding:"required"`
	SelectedLabel string `json:"selected_label" binding:"required,oneof=A B C D"`
}
