package attempt

import (
	"github.com/prepdesk/examtake/internal/model"
)

// NavState tells the UI which navigation affordances are valid right now.
type NavState struct {
	CanPrev             bool `json:"can_prev"`
	CanNext             bool `json:"can_next"`
	ShowSaveAndExit     bool `json:"show_save_and_exit"`
	ShowSubmit          bool `json:"show_submit"`
	ShowSubmittedBanner bool `json:"show_submitted_banner"`
}

// Navigation computes the valid actions for one position of an attempt.
//
// Save-and-exit is a practice-only affordance: practice attempts are
// resumable, while a timed attempt offering a silent exit would look like
// it pauses a clock that keeps running. Submission is only offered from
// the final position. Once submitted, every editing action is suppressed
// and the review link is the sole affordance.
func Navigation(position, questionCount int, mode model.AttemptMode, isSubmitted bool) NavState {
	return NavState{
		CanPrev:             position > 1,
		CanNext:             position < questionCount,
		ShowSaveAndExit:     mode == model.ModePractice && !isSubmitted,
		ShowSubmit:          position == questionCount && !isSubmitted,
		ShowSubmittedBanner: isSubmitted,
	}
}
