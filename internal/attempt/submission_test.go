package attempt

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prepdesk/examtake/internal/gateway"
	"github.com/prepdesk/examtake/internal/model"
	"github.com/rs/zerolog"
)

// fakeSubmitter scripts the remote submit outcome and counts calls.
type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int
	result  *model.SubmitResult
	err     error
	release chan struct{} // when set, submit blocks until closed
}

func (f *fakeSubmitter) submit(ctx context.Context) (*model.SubmitResult, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	return f.result, f.err
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestWorkflow(f *fakeSubmitter) *SubmissionWorkflow {
	return NewSubmissionWorkflow(f.submit, zerolog.Nop())
}

func TestRequestSubmitDirect(t *testing.T) {
	f := &fakeSubmitter{result: &model.SubmitResult{AttemptID: 1, ScorePercent: 80}}
	w := newTestWorkflow(f)

	st := w.RequestSubmit(context.Background(), 0)
	if st != StateSubmitted {
		t.Fatalf("state = %s, want %s", st, StateSubmitted)
	}
	if f.callCount() != 1 {
		t.Errorf("submit calls = %d, want 1", f.callCount())
	}
	if res := w.Result(); res == nil || res.ScorePercent != 80 {
		t.Errorf("Result = %+v, want score 80", res)
	}
}

func TestRequestSubmitParksOnUnanswered(t *testing.T) {
	f := &fakeSubmitter{}
	w := newTestWorkflow(f)

	st := w.RequestSubmit(context.Background(), 3)
	if st != StateConfirmingSubmit {
		t.Fatalf("state = %s, want %s", st, StateConfirmingSubmit)
	}
	if f.callCount() != 0 {
		t.Error("confirmation must not touch the network")
	}

	// Cancel returns to editing; a second cancel is an error.
	if st, err := w.CancelConfirmation(); err != nil || st != StateEditing {
		t.Errorf("CancelConfirmation = (%s, %v), want (%s, nil)", st, err, StateEditing)
	}
	if _, err := w.CancelConfirmation(); !errors.Is(err, ErrNotConfirming) {
		t.Errorf("second cancel error = %v, want ErrNotConfirming", err)
	}
}

func TestConfirmAnywaySubmits(t *testing.T) {
	f := &fakeSubmitter{result: &model.SubmitResult{AttemptID: 1}}
	w := newTestWorkflow(f)

	w.RequestSubmit(context.Background(), 5)
	if st := w.ConfirmAnyway(context.Background()); st != StateSubmitted {
		t.Fatalf("state = %s, want %s", st, StateSubmitted)
	}
	if f.callCount() != 1 {
		t.Errorf("submit calls = %d, want 1", f.callCount())
	}

	// Confirm with nothing pending is a no-op on the terminal state.
	if st := w.ConfirmAnyway(context.Background()); st != StateSubmitted {
		t.Errorf("stale confirm moved state to %s", st)
	}
	if f.callCount() != 1 {
		t.Error("stale confirm started a second submit")
	}
}

func TestConflictTreatedAsSubmitted(t *testing.T) {
	f := &fakeSubmitter{err: &gateway.Error{
		Kind:   gateway.KindConflict,
		Status: http.StatusConflict,
		Op:     "submit_attempt",
	}}
	w := newTestWorkflow(f)

	if st := w.RequestSubmit(context.Background(), 0); st != StateSubmitted {
		t.Fatalf("state after conflict = %s, want %s", st, StateSubmitted)
	}
	if err := w.LastError(); err != nil {
		t.Errorf("LastError after conflict = %v, want nil", err)
	}
	if res := w.Result(); res != nil {
		t.Errorf("conflict must not fabricate a result, got %+v", res)
	}
}

func TestFailedSubmitRollsBackToEditing(t *testing.T) {
	f := &fakeSubmitter{err: &gateway.Error{
		Kind:   gateway.KindTransient,
		Status: http.StatusBadGateway,
		Op:     "submit_attempt",
	}}
	w := newTestWorkflow(f)

	if st := w.RequestSubmit(context.Background(), 0); st != StateEditing {
		t.Fatalf("state after failure = %s, want %s", st, StateEditing)
	}
	if w.LastError() == nil {
		t.Error("LastError not recorded")
	}

	// Retry after the backend recovers.
	f.mu.Lock()
	f.err = nil
	f.result = &model.SubmitResult{AttemptID: 1}
	f.mu.Unlock()
	if st := w.RequestSubmit(context.Background(), 0); st != StateSubmitted {
		t.Errorf("retry state = %s, want %s", st, StateSubmitted)
	}
	if err := w.LastError(); err != nil {
		t.Errorf("LastError after successful retry = %v, want nil", err)
	}
}

func TestTriggersIgnoredWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	f := &fakeSubmitter{result: &model.SubmitResult{AttemptID: 1}, release: release}
	w := newTestWorkflow(f)

	done := make(chan SubmissionState)
	go func() { done <- w.RequestSubmit(context.Background(), 0) }()

	// Wait until the in-flight state is claimed.
	deadline := time.Now().Add(2 * time.Second)
	for w.State() != StateSubmitting {
		if time.Now().After(deadline) {
			t.Fatal("submit never entered the in-flight state")
		}
		time.Sleep(time.Millisecond)
	}

	if st := w.RequestSubmit(context.Background(), 0); st != StateSubmitting {
		t.Errorf("concurrent request returned %s, want in-flight %s", st, StateSubmitting)
	}
	if fired := w.OnTimerExpired(context.Background()); fired {
		t.Error("expiry fired while a submit was in flight")
	}

	close(release)
	if st := <-done; st != StateSubmitted {
		t.Fatalf("final state = %s, want %s", st, StateSubmitted)
	}
	if f.callCount() != 1 {
		t.Errorf("submit calls = %d, want 1", f.callCount())
	}
}

func TestOnTimerExpiredFiresOnce(t *testing.T) {
	f := &fakeSubmitter{result: &model.SubmitResult{AttemptID: 1}}
	w := newTestWorkflow(f)

	if fired := w.OnTimerExpired(context.Background()); !fired {
		t.Fatal("first expiry did not fire")
	}
	if w.State() != StateSubmitted {
		t.Fatalf("state = %s, want %s", w.State(), StateSubmitted)
	}
	for i := 0; i < 5; i++ {
		if fired := w.OnTimerExpired(context.Background()); fired {
			t.Fatal("expiry fired more than once")
		}
	}
	if f.callCount() != 1 {
		t.Errorf("submit calls = %d, want 1", f.callCount())
	}
}

func TestOnTimerExpiredBypassesConfirmation(t *testing.T) {
	f := &fakeSubmitter{result: &model.SubmitResult{AttemptID: 1}}
	w := newTestWorkflow(f)

	// Dialog open when the clock runs out.
	w.RequestSubmit(context.Background(), 4)
	if fired := w.OnTimerExpired(context.Background()); !fired {
		t.Fatal("expiry did not fire through the open confirmation")
	}
	if w.State() != StateSubmitted {
		t.Errorf("state = %s, want %s", w.State(), StateSubmitted)
	}
	if !w.AutoSubmitted() {
		t.Error("AutoSubmitted = false after expiry submit")
	}
}

func TestFailedAutoSubmitDoesNotRetry(t *testing.T) {
	f := &fakeSubmitter{err: errors.New("backend down")}
	w := newTestWorkflow(f)

	if fired := w.OnTimerExpired(context.Background()); !fired {
		t.Fatal("expiry did not fire")
	}
	if w.State() != StateEditing {
		t.Fatalf("state after failed auto-submit = %s, want %s", w.State(), StateEditing)
	}

	// The one-shot guard stays spent; only a manual retry may proceed.
	if fired := w.OnTimerExpired(context.Background()); fired {
		t.Error("failed auto-submit re-armed the expiry trigger")
	}
	f.mu.Lock()
	f.err = nil
	f.result = &model.SubmitResult{AttemptID: 1}
	f.mu.Unlock()
	if st := w.RequestSubmit(context.Background(), 0); st != StateSubmitted {
		t.Errorf("manual retry state = %s, want %s", st, StateSubmitted)
	}
}

func TestMarkSubmittedSeedsTerminalState(t *testing.T) {
	f := &fakeSubmitter{}
	w := newTestWorkflow(f)

	w.MarkSubmitted(nil)
	if w.State() != StateSubmitted {
		t.Fatalf("state = %s, want %s", w.State(), StateSubmitted)
	}
	if st := w.RequestSubmit(context.Background(), 0); st != StateSubmitted {
		t.Errorf("submit on a seeded session returned %s", st)
	}
	if f.callCount() != 0 {
		t.Error("seeded session reached the network")
	}

	// A later result fill-in sticks; nil does not erase it.
	w.MarkSubmitted(&model.SubmitResult{AttemptID: 9})
	w.MarkSubmitted(nil)
	if res := w.Result(); res == nil || res.AttemptID != 9 {
		t.Errorf("Result = %+v, want attempt 9", res)
	}
}
