package attempt

import (
	"context"
	"errors"
	"sync"

	"github.com/prepdesk/examtake/internal/gateway"
	"github.com/prepdesk/examtake/internal/model"
	"github.com/rs/zerolog"
)

// SubmissionState enumerates the submission state machine.
type SubmissionState string

const (
	StateEditing          SubmissionState = "editing"
	StateConfirmingSubmit SubmissionState = "confirming_submit"
	StateSubmitting       SubmissionState = "submitting"
	StateAutoSubmitting   SubmissionState = "auto_submitting"
	StateSubmitted        SubmissionState = "submitted"
)

// ErrNotConfirming is returned when a cancel arrives outside the
// confirmation dialog state.
var ErrNotConfirming = errors.New("no submission awaiting confirmation")

// SubmitFunc performs the remote submit operation.
type SubmitFunc func(ctx context.Context) (*model.SubmitResult, error)

// SubmissionWorkflow owns the submission state of one attempt session.
//
// The one-shot auto-submit guard and the single-in-flight invariant are
// both structural: AutoSubmitting is its own state, and any trigger that
// arrives while a submit is in flight is ignored rather than queued.
type SubmissionWorkflow struct {
	submit SubmitFunc
	log    zerolog.Logger

	mu            sync.Mutex
	state         SubmissionState
	autoSubmitted bool
	result        *model.SubmitResult
	lastErr       error
}

// NewSubmissionWorkflow creates a workflow in the Editing state.
func NewSubmissionWorkflow(submit SubmitFunc, log zerolog.Logger) *SubmissionWorkflow {
	return &SubmissionWorkflow{
		submit: submit,
		state:  StateEditing,
		log:    log.With().Str("component", "submission_workflow").Logger(),
	}
}

// MarkSubmitted seeds the terminal state for an attempt that the backend
// already reports as submitted (resume after submission). result may be nil;
// the results view falls back to the remote result fetch.
func (w *SubmissionWorkflow) MarkSubmitted(result *model.SubmitResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateSubmitted
	if result != nil {
		w.result = result
	}
}

// State returns the current submission state.
func (w *SubmissionWorkflow) State() SubmissionState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// AutoSubmitted reports whether the timer-expiry path has already fired.
func (w *SubmissionWorkflow) AutoSubmitted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.autoSubmitted
}

// Result returns the stored submit result, nil until a successful submit
// delivered one.
func (w *SubmissionWorkflow) Result() *model.SubmitResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// LastError returns the most recent submit failure, nil after success.
func (w *SubmissionWorkflow) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// RequestSubmit handles the user's submit click. With unanswered questions
// remaining it parks in ConfirmingSubmit without touching the network;
// otherwise it submits directly. Any state other than Editing means the
// trigger is stale (double click, replayed request) and is ignored.
func (w *SubmissionWorkflow) RequestSubmit(ctx context.Context, unansweredCount int) SubmissionState {
	w.mu.Lock()
	if w.state != StateEditing {
		st := w.state
		w.mu.Unlock()
		return st
	}
	if unansweredCount > 0 {
		w.state = StateConfirmingSubmit
		w.mu.Unlock()
		return StateConfirmingSubmit
	}
	w.state = StateSubmitting
	w.mu.Unlock()

	return w.runSubmit(ctx, StateSubmitting)
}

// ConfirmAnyway proceeds with submission despite unanswered questions.
// Ignored unless a confirmation is actually pending, so a rapid second
// click cannot start a second submit.
func (w *SubmissionWorkflow) ConfirmAnyway(ctx context.Context) SubmissionState {
	w.mu.Lock()
	if w.state != StateConfirmingSubmit {
		st := w.state
		w.mu.Unlock()
		return st
	}
	w.state = StateSubmitting
	w.mu.Unlock()

	return w.runSubmit(ctx, StateSubmitting)
}

// CancelConfirmation dismisses the unanswered-questions dialog.
func (w *SubmissionWorkflow) CancelConfirmation() (SubmissionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateConfirmingSubmit {
		return w.state, ErrNotConfirming
	}
	w.state = StateEditing
	return StateEditing, nil
}

// OnTimerExpired forces submission on timer expiry, bypassing the
// unanswered-count confirmation: an expiry submit must not be blockable
// by a dialog. Fires at most once per session; returns whether it fired.
func (w *SubmissionWorkflow) OnTimerExpired(ctx context.Context) bool {
	w.mu.Lock()
	if w.autoSubmitted || (w.state != StateEditing && w.state != StateConfirmingSubmit) {
		w.mu.Unlock()
		return false
	}
	w.autoSubmitted = true
	w.state = StateAutoSubmitting
	w.mu.Unlock()

	w.log.Info().Msg("Timer expired, auto-submitting attempt")
	w.runSubmit(ctx, StateAutoSubmitting)
	return true
}

// runSubmit performs the remote call outside the lock and applies the
// outcome. inFlight is the state claimed before the call; it doubles as
// the guard that keeps concurrent triggers out.
func (w *SubmissionWorkflow) runSubmit(ctx context.Context, inFlight SubmissionState) SubmissionState {
	result, err := w.submit(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case err == nil:
		w.state = StateSubmitted
		w.result = result
		w.lastErr = nil

	case gateway.IsConflict(err):
		// Already finalized upstream — idempotency, not a failure. The
		// stored score is re-fetched lazily by the results view.
		w.state = StateSubmitted
		w.lastErr = nil
		w.log.Info().Msg("Submit conflict: attempt already submitted upstream")

	default:
		// Roll back to Editing so the user can retry manually. The
		// autoSubmitted guard is NOT reset: a failed expiry submit must
		// not turn into an automatic retry loop racing a manual one.
		w.state = StateEditing
		w.lastErr = err
		if inFlight == StateAutoSubmitting {
			w.log.Error().Err(err).Msg("Auto-submit failed")
		} else {
			w.log.Warn().Err(err).Msg("Submit failed")
		}
	}

	return w.state
}
