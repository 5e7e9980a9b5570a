package attempt

import (
	"context"
	"errors"
	"time"

	"github.com/prepdesk/examtake/internal/gateway"
	"github.com/prepdesk/examtake/internal/model"
	"github.com/rs/zerolog"
	"sync"
)

var (
	// ErrSessionClosed means the session was torn down; late responses
	// observing this are discarded, never applied to state.
	ErrSessionClosed = errors.New("attempt session closed")
	// ErrPositionOutOfRange rejects positions outside [1, questionCount].
	ErrPositionOutOfRange = errors.New("position out of range")
	// ErrAlreadySubmitted rejects edits on a finalized attempt.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrNotSubmitted rejects result/review reads before submission.
	ErrNotSubmitted = errors.New("attempt not submitted")
	// ErrReviewUnavailable rejects pre-submission review of timed attempts.
	ErrReviewUnavailable = errors.New("review available after submission")
)

// PositionRecorder persists the last-visited position for the resume flow.
type PositionRecorder interface {
	SetLastPosition(ctx context.Context, attemptID int64, position int) error
}

// ResultCache keeps the scored outcome readable across service restarts.
// LoadResult returns (nil, nil) when nothing is cached.
type ResultCache interface {
	SaveResult(ctx context.Context, attemptID int64, res *model.SubmitResult) error
	LoadResult(ctx context.Context, attemptID int64) (*model.SubmitResult, error)
}

// SessionView is the UI-facing snapshot of one live session.
type SessionView struct {
	Meta          model.AttemptMeta `json:"meta"`
	Timer         *TimerView        `json:"timer,omitempty"`
	Submission    SubmissionState   `json:"submission_state"`
	AutoSubmitted bool              `json:"auto_submitted"`
	AnsweredCount int               `json:"answered_count"`
	Unanswered    []int             `json:"unanswered"`
	Position      int               `json:"position,omitempty"`
	Nav           *NavState         `json:"nav,omitempty"`
	SubmitError   string            `json:"submit_error,omitempty"`
}

// Controller keeps a single in-progress attempt consistent across page
// reloads, navigation and the countdown. It composes the authoritative
// meta, the answered-set cache, the timer projection and the submission
// workflow behind one per-attempt object.
type Controller struct {
	attemptID int64
	api       gateway.AttemptAPI
	answered  *AnsweredSet
	workflow  *SubmissionWorkflow
	positions PositionRecorder
	results   ResultCache
	log       zerolog.Logger

	mu          sync.Mutex
	meta        *model.AttemptMeta
	credential  string
	expiredSeen bool
	closed      bool
}

// NewController builds the session object for an attempt whose meta was
// just resolved from the authoritative source. An already-submitted
// attempt starts with the workflow in its terminal state.
func NewController(
	meta *model.AttemptMeta,
	api gateway.AttemptAPI,
	answered *AnsweredSet,
	positions PositionRecorder,
	results ResultCache,
	log zerolog.Logger,
) *Controller {
	c := &Controller{
		attemptID: meta.AttemptID,
		api:       api,
		answered:  answered,
		positions: positions,
		results:   results,
		meta:      meta,
		log: log.With().
			Str("component", "attempt_controller").
			Int64("attempt_id", meta.AttemptID).
			Logger(),
	}
	c.workflow = NewSubmissionWorkflow(c.remoteSubmit, c.log)
	if meta.IsSubmitted {
		c.workflow.MarkSubmitted(nil)
	}
	return c
}

// remoteSubmit is the SubmitFunc wired into the workflow. It carries the
// last-seen credential so the expiry path can submit without a request
// context, and flips the local meta on any finalizing outcome.
func (c *Controller) remoteSubmit(ctx context.Context) (*model.SubmitResult, error) {
	ctx = gateway.WithCredential(ctx, c.Credential())

	res, err := c.api.SubmitAttempt(ctx, c.attemptID)
	if err != nil && !gateway.IsConflict(err) {
		return nil, err
	}

	c.markSubmittedLocally(res)
	if res != nil {
		if cacheErr := c.results.SaveResult(ctx, c.attemptID, res); cacheErr != nil {
			c.log.Warn().Err(cacheErr).Msg("Failed to cache submit result")
		}
	}
	return res, err
}

func (c *Controller) markSubmittedLocally(res *model.SubmitResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta.IsSubmitted = true
	if res != nil {
		t := res.SubmittedAt
		c.meta.SubmittedAt = &t
		c.meta.ScorePercent = &res.ScorePercent
		passed := res.Passed
		c.meta.Passed = &passed
	}
}

// AttemptID returns the immutable attempt identifier.
func (c *Controller) AttemptID() int64 {
	return c.attemptID
}

// Meta returns a copy of the current attempt metadata.
func (c *Controller) Meta() model.AttemptMeta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.meta
}

// SetCredential refreshes the forwarded credential. Called on every
// request handled for this session so the expiry submit always has the
// freshest one.
func (c *Controller) SetCredential(credential string) {
	if credential == "" {
		return
	}
	c.mu.Lock()
	c.credential = credential
	c.mu.Unlock()
}

// Credential returns the last credential seen for this session.
func (c *Controller) Credential() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential
}

// Timer projects the countdown at the given instant; nil for practice.
func (c *Controller) Timer(now time.Time) *TimerView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ProjectTimer(c.meta, now)
}

// Tick re-evaluates the countdown. On the false→true expiry edge — and
// only on the edge, never on the level — it fires the workflow's
// auto-submit exactly once. Reports whether it fired.
func (c *Controller) Tick(ctx context.Context, now time.Time) bool {
	c.mu.Lock()
	if c.closed || c.expiredSeen {
		c.mu.Unlock()
		return false
	}
	view := ProjectTimer(c.meta, now)
	if view == nil || !view.IsExpired {
		c.mu.Unlock()
		return false
	}
	c.expiredSeen = true
	c.mu.Unlock()

	return c.workflow.OnTimerExpired(ctx)
}

// LoadQuestion fetches the question at position, reconciles the
// answered-set with the server-reported selection, records the position
// for resume, and returns the navigation decisions alongside.
func (c *Controller) LoadQuestion(ctx context.Context, position int) (*model.Question, NavState, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, NavState{}, ErrSessionClosed
	}
	count := c.meta.QuestionCount
	c.mu.Unlock()

	if position < 1 || position > count {
		return nil, NavState{}, ErrPositionOutOfRange
	}

	q, err := c.api.FetchQuestion(ctx, c.attemptID, position)
	if err != nil {
		return nil, NavState{}, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, NavState{}, ErrSessionClosed
	}
	mode := c.meta.Mode
	submitted := c.meta.IsSubmitted
	c.mu.Unlock()

	hasSelection := q.SelectedLabel != nil && *q.SelectedLabel != ""
	if err := c.answered.ReconcileFromServer(ctx, position, hasSelection); err != nil {
		c.log.Warn().Err(err).Int("position", position).Msg("Answered-set reconcile failed")
	}
	if err := c.positions.SetLastPosition(ctx, c.attemptID, position); err != nil {
		c.log.Warn().Err(err).Msg("Failed to record last position")
	}

	return q, Navigation(position, count, mode, submitted), nil
}

// RecordAnswer writes the selection to the backend and only on success
// marks the position answered. A failed write leaves the answered-set
// untouched, so the position stays in unanswered().
func (c *Controller) RecordAnswer(ctx context.Context, position int, questionID int64, selectedLabel string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	count := c.meta.QuestionCount
	submitted := c.meta.IsSubmitted
	c.mu.Unlock()

	if submitted || c.workflow.State() == StateSubmitted {
		return ErrAlreadySubmitted
	}
	if position < 1 || position > count {
		return ErrPositionOutOfRange
	}

	if err := c.api.RecordAnswer(ctx, c.attemptID, questionID, selectedLabel); err != nil {
		return err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		// Session torn down while the write was in flight.
		return ErrSessionClosed
	}

	return c.answered.MarkAnswered(ctx, position)
}

// RequestSubmit relays the user's submit click; with unanswered positions
// left the workflow parks in confirmation instead of hitting the network.
func (c *Controller) RequestSubmit(ctx context.Context) SubmissionState {
	unanswered := len(c.answered.Unanswered(c.Meta().QuestionCount))
	return c.workflow.RequestSubmit(ctx, unanswered)
}

// ConfirmSubmit proceeds past the unanswered-questions confirmation.
func (c *Controller) ConfirmSubmit(ctx context.Context) SubmissionState {
	return c.workflow.ConfirmAnyway(ctx)
}

// CancelSubmit dismisses the confirmation dialog.
func (c *Controller) CancelSubmit() (SubmissionState, error) {
	return c.workflow.CancelConfirmation()
}

// Result returns the scored outcome: the workflow's stored result when the
// submit happened in this session, the Redis-cached copy after a restart,
// and the remote result endpoint as the final fallback.
func (c *Controller) Result(ctx context.Context) (*model.SubmitResult, error) {
	if res := c.workflow.Result(); res != nil {
		return res, nil
	}
	if !c.Meta().IsSubmitted && c.workflow.State() != StateSubmitted {
		return nil, ErrNotSubmitted
	}

	if cached, err := c.results.LoadResult(ctx, c.attemptID); err == nil && cached != nil {
		c.workflow.MarkSubmitted(cached)
		return cached, nil
	}

	res, err := c.api.FetchResult(ctx, c.attemptID)
	if err != nil {
		return nil, err
	}
	c.workflow.MarkSubmitted(res)
	if cacheErr := c.results.SaveResult(ctx, c.attemptID, res); cacheErr != nil {
		c.log.Warn().Err(cacheErr).Msg("Failed to cache fetched result")
	}
	return res, nil
}

// Review returns the post-submission review sequence. Timed attempts are
// refused before submission; practice attempts may review at any time.
func (c *Controller) Review(ctx context.Context) ([]model.ReviewItem, error) {
	meta := c.Meta()
	if meta.Mode == model.ModeTimed && !meta.IsSubmitted && c.workflow.State() != StateSubmitted {
		return nil, ErrReviewUnavailable
	}
	return c.api.FetchReview(ctx, c.attemptID)
}

// Snapshot assembles the session view for the UI. position <= 0 omits the
// per-position navigation block.
func (c *Controller) Snapshot(now time.Time, position int) SessionView {
	meta := c.Meta()
	submitted := meta.IsSubmitted || c.workflow.State() == StateSubmitted

	view := SessionView{
		Meta:          meta,
		Timer:         ProjectTimer(&meta, now),
		Submission:    c.workflow.State(),
		AutoSubmitted: c.workflow.AutoSubmitted(),
		AnsweredCount: c.answered.Count(),
		Unanswered:    c.answered.Unanswered(meta.QuestionCount),
	}
	if err := c.workflow.LastError(); err != nil {
		view.SubmitError = err.Error()
	}
	if position >= 1 && position <= meta.QuestionCount {
		nav := Navigation(position, meta.QuestionCount, meta.Mode, submitted)
		view.Position = position
		view.Nav = &nav
	}
	return view
}

// Close marks the session torn down. In-flight responses observing the
// flag afterwards are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Closed reports whether the session has been torn down.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
