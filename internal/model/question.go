package model

// Choice is one answer option of a multiple-choice question.
type Choice struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Question is the per-position question payload served during an attempt.
// SelectedLabel is non-nil when the backend already has a recorded answer
// for this position.
type Question struct {
	AttemptID     int64    `json:"attempt_id"`
	Position      int      `json:"position"`
	QuestionID    int64    `json:"question_id"`
	Text          string   `json:"text"`
	Topic         *string  `json:"topic,omitempty"`
	Subtopic      *string  `json:"subtopic,omitempty"`
	Choices       []Choice `json:"choices"`
	Explanation   *string  `json:"explanation,omitempty"`
	SelectedLabel *string  `json:"selected_label,omitempty"`
}

// ReviewItem is one entry of the post-submission review sequence.
type ReviewItem struct {
	Position      int      `json:"position"`
	QuestionID    int64    `json:"question_id"`
	Text          string   `json:"text"`
	Topic         *string  `json:"topic,omitempty"`
	Subtopic      *string  `json:"subtopic,omitempty"`
	Choices       []Choice `json:"choices"`
	SelectedLabel *string  `json:"selected_label"`
	CorrectLabel  *string  `json:"correct_label"`
	Explanation   *string  `json:"explanation"`
}
