package model

import (
	"time"
)

// TopicScore is the per-topic slice of a scored attempt.
type TopicScore struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// SubmitResult is the scored outcome of a submitted attempt.
type SubmitResult struct {
	AttemptID        int64                 `json:"attempt_id"`
	ScorePercent     int                   `json:"score_percent"`
	Passed           bool                  `json:"passed"`
	TotalQuestions   int                   `json:"total_questions"`
	Correct          int                   `json:"correct"`
	BreakdownByTopic map[string]TopicScore `json:"breakdown_by_topic"`
	SubmittedAt      time.Time             `json:"submitted_at"`
}
