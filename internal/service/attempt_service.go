package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/prepdesk/examtake/internal/attempt"
	"github.com/prepdesk/examtake/internal/gateway"
	"github.com/prepdesk/examtake/internal/model"
	"github.com/rs/zerolog"
)

// Defaults mirror the exam backend's own: a 150-question paper and a
// 150-minute clock for timed attempts.
const (
	DefaultQuestionCount = 150
	DefaultTimedSeconds  = 150 * 60
)

// ErrTimedNoExit rejects save-and-exit on timed attempts: the clock keeps
// running, so offering a silent exit would mislead the candidate.
var ErrTimedNoExit = errors.New("timed attempts cannot be saved and exited")

// ProgressStore is the resume bookkeeping the service depends on.
type ProgressStore interface {
	attempt.PositionRecorder
	LastPosition(ctx context.Context, attemptID int64) (int, bool, error)
	SetLastPracticeAttempt(ctx context.Context, userKey string, attemptID int64) error
	LastPracticeAttempt(ctx context.Context, userKey string) (int64, bool, error)
}

type liveSession struct {
	ctrl     *attempt.Controller
	lastSeen time.Time
}

// AttemptService owns the registry of live attempt sessions: at most one
// controller per attempt. Sessions are created on start, revived on
// resume with authoritative meta, and evicted when idle or closed.
type AttemptService struct {
	api         gateway.AttemptAPI
	answered    attempt.AnsweredStore
	progress    ProgressStore
	results     attempt.ResultCache
	idleTimeout time.Duration
	log         zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]*liveSession
}

// NewAttemptService creates the session registry.
func NewAttemptService(
	api gateway.AttemptAPI,
	answered attempt.AnsweredStore,
	progress ProgressStore,
	results attempt.ResultCache,
	idleTimeout time.Duration,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		api:         api,
		answered:    answered,
		progress:    progress,
		results:     results,
		idleTimeout: idleTimeout,
		log:         log.With().Str("component", "attempt_service").Logger(),
		sessions:    make(map[int64]*liveSession),
	}
}

// Start creates a new attempt upstream and registers its session.
// Missing fields take the backend defaults; practice attempts never carry
// a time limit regardless of what the caller sent.
func (s *AttemptService) Start(ctx context.Context, credential string, req model.StartAttemptRequest) (*attempt.Controller, error) {
	if req.QuestionCount == 0 {
		req.QuestionCount = DefaultQuestionCount
	}
	switch req.Mode {
	case model.ModePractice:
		req.TimeLimitSeconds = nil
	case model.ModeTimed:
		if req.TimeLimitSeconds == nil {
			limit := DefaultTimedSeconds
			req.TimeLimitSeconds = &limit
		}
	}

	ctx = gateway.WithCredential(ctx, credential)
	meta, err := s.api.StartAttempt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("start attempt: %w", err)
	}

	ctrl := s.buildController(ctx, meta, credential)

	if meta.Mode == model.ModePractice {
		if err := s.progress.SetLastPracticeAttempt(ctx, userKey(credential), meta.AttemptID); err != nil {
			s.log.Warn().Err(err).Int64("attempt_id", meta.AttemptID).Msg("Failed to record practice resume pointer")
		}
	}

	s.log.Info().
		Int64("attempt_id", meta.AttemptID).
		Str("mode", string(meta.Mode)).
		Int("question_count", meta.QuestionCount).
		Msg("Attempt started")
	return ctrl, nil
}

// Session returns the live controller for an attempt, reviving it from
// the authoritative meta when no session exists (page reload, service
// restart). Without authoritative meta the attempt is unusable — a timed
// countdown must never be derived from a locally cached copy.
func (s *AttemptService) Session(ctx context.Context, credential string, attemptID int64) (*attempt.Controller, error) {
	s.mu.Lock()
	if live, ok := s.sessions[attemptID]; ok && !live.ctrl.Closed() {
		live.lastSeen = time.Now()
		s.mu.Unlock()
		live.ctrl.SetCredential(credential)
		return live.ctrl, nil
	}
	s.mu.Unlock()

	ctx = gateway.WithCredential(ctx, credential)
	meta, err := s.api.FetchMeta(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("resolve attempt meta: %w", err)
	}

	ctrl := s.buildController(ctx, meta, credential)
	s.log.Info().Int64("attempt_id", attemptID).Msg("Attempt session resumed")
	return ctrl, nil
}

func (s *AttemptService) buildController(ctx context.Context, meta *model.AttemptMeta, credential string) *attempt.Controller {
	answered, err := attempt.LoadAnsweredSet(ctx, s.answered, meta.AttemptID, meta.QuestionCount)
	if err != nil {
		// Degraded to empty; per-question reconcile repopulates it.
		s.log.Warn().Err(err).Int64("attempt_id", meta.AttemptID).Msg("Answered-set load degraded to empty")
	}

	ctrl := attempt.NewController(meta, s.api, answered, s.progress, s.results, s.log)
	ctrl.SetCredential(credential)

	s.mu.Lock()
	s.sessions[meta.AttemptID] = &liveSession{ctrl: ctrl, lastSeen: time.Now()}
	s.mu.Unlock()
	return ctrl
}

// SaveAndExit records the resume position and tears the session down.
// Practice only: a timed attempt's clock cannot be paused by leaving.
func (s *AttemptService) SaveAndExit(ctx context.Context, credential string, attemptID int64, position int) error {
	ctrl, err := s.Session(ctx, credential, attemptID)
	if err != nil {
		return err
	}

	meta := ctrl.Meta()
	if meta.Mode != model.ModePractice {
		return ErrTimedNoExit
	}
	if meta.IsSubmitted {
		return attempt.ErrAlreadySubmitted
	}

	if position >= 1 && position <= meta.QuestionCount {
		if err := s.progress.SetLastPosition(ctx, attemptID, position); err != nil {
			s.log.Warn().Err(err).Int64("attempt_id", attemptID).Msg("Failed to record exit position")
		}
	}

	ctrl.Close()
	s.mu.Lock()
	delete(s.sessions, attemptID)
	s.mu.Unlock()

	s.log.Info().Int64("attempt_id", attemptID).Int("position", position).Msg("Attempt saved and exited")
	return nil
}

// LastPractice resolves the caller's resume target: the most recent
// practice attempt and its last-visited position (1 when unknown).
func (s *AttemptService) LastPractice(ctx context.Context, credential string) (attemptID int64, position int, found bool, err error) {
	attemptID, found, err = s.progress.LastPracticeAttempt(ctx, userKey(credential))
	if err != nil || !found {
		return 0, 0, false, err
	}

	position, ok, posErr := s.progress.LastPosition(ctx, attemptID)
	if posErr != nil {
		s.log.Warn().Err(posErr).Int64("attempt_id", attemptID).Msg("Failed to read last position")
	}
	if !ok {
		position = 1
	}
	return attemptID, position, true, nil
}

// Tick drives timer re-evaluation for every live session and evicts
// closed or idle ones. Each controller ticks in its own goroutine so one
// slow auto-submit cannot stall the others.
func (s *AttemptService) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	ctrls := make([]*attempt.Controller, 0, len(s.sessions))
	for id, live := range s.sessions {
		if live.ctrl.Closed() || now.Sub(live.lastSeen) > s.idleTimeout {
			live.ctrl.Close()
			delete(s.sessions, id)
			continue
		}
		ctrls = append(ctrls, live.ctrl)
	}
	s.mu.Unlock()

	for _, ctrl := range ctrls {
		go func(c *attempt.Controller) {
			if c.Tick(ctx, now) {
				s.log.Info().Int64("attempt_id", c.AttemptID()).Msg("Auto-submit fired on timer expiry")
			}
		}(ctrl)
	}
}

// Touch refreshes a session's idle clock.
func (s *AttemptService) Touch(attemptID int64) {
	s.mu.Lock()
	if live, ok := s.sessions[attemptID]; ok {
		live.lastSeen = time.Now()
	}
	s.mu.Unlock()
}

// CloseAll tears down every live session. Used during shutdown.
func (s *AttemptService) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, live := range s.sessions {
		live.ctrl.Close()
		delete(s.sessions, id)
	}
}

// userKey hashes the opaque credential into a stable Redis key segment;
// the credential itself is never persisted.
func userKey(credential string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(credential))
	return fmt.Sprintf("%x", h.Sum64())
}
