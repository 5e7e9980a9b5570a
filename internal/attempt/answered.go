package attempt

import (
	"context"
	"sort"
	"sync"
)

// AnsweredStore is the persistence capability behind the answered-set.
// The production implementation is Redis-backed; tests inject an
// in-memory fake.
type AnsweredStore interface {
	// Load returns the persisted positions for an attempt. Absent or
	// unreadable data yields an empty slice, never an error about shape.
	Load(ctx context.Context, attemptID int64) ([]int, error)
	// Add persists one more answered position. Must be idempotent.
	Add(ctx context.Context, attemptID int64, position int) error
}

// AnsweredSet tracks which positions of one attempt have a recorded
// selection. It is a monotonic set bounded to [1, questionCount]: an
// answer can be changed but never un-recorded, so positions are only
// ever added.
type AnsweredSet struct {
	store         AnsweredStore
	attemptID     int64
	questionCount int

	mu        sync.Mutex
	positions map[int]struct{}
}

// LoadAnsweredSet reads the persisted set for an attempt, dropping any
// member outside [1, questionCount] — a stale or corrupt entry must
// degrade to "not yet known answered", never poison the complement. A
// store read failure degrades to an empty set (the server reconcile on
// each question fetch repopulates it); the error is returned so the
// caller can log it.
func LoadAnsweredSet(ctx context.Context, store AnsweredStore, attemptID int64, questionCount int) (*AnsweredSet, error) {
	s := &AnsweredSet{
		store:         store,
		attemptID:     attemptID,
		questionCount: questionCount,
		positions:     make(map[int]struct{}),
	}

	persisted, err := store.Load(ctx, attemptID)
	for _, p := range persisted {
		if p >= 1 && p <= questionCount {
			s.positions[p] = struct{}{}
		}
	}
	return s, err
}

// MarkAnswered records a position as answered and persists it immediately.
// Idempotent: an already-present position is a no-op with no store write.
// Positions outside the set's bound are ignored.
func (s *AnsweredSet) MarkAnswered(ctx context.Context, position int) error {
	if position < 1 || position > s.questionCount {
		return nil
	}

	s.mu.Lock()
	_, exists := s.positions[position]
	if !exists {
		s.positions[position] = struct{}{}
	}
	s.mu.Unlock()

	if exists {
		return nil
	}
	return s.store.Add(ctx, s.attemptID, position)
}

// ReconcileFromServer merges the backend's per-question answer state in
// after a question fetch. Server truth only ever adds entries; a position
// the server reports unanswered is NOT removed, because a locally
// confirmed write may simply not be visible to this fetch yet.
func (s *AnsweredSet) ReconcileFromServer(ctx context.Context, position int, hasSelection bool) error {
	if !hasSelection {
		return nil
	}
	return s.MarkAnswered(ctx, position)
}

// Contains reports whether a position is known answered.
func (s *AnsweredSet) Contains(position int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.positions[position]
	return ok
}

// Count returns the number of answered positions.
func (s *AnsweredSet) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

// Positions returns the answered positions in ascending order.
func (s *AnsweredSet) Positions() []int {
	s.mu.Lock()
	out := make([]int, 0, len(s.positions))
	for p := range s.positions {
		out = append(out, p)
	}
	s.mu.Unlock()

	sort.Ints(out)
	return out
}

// Unanswered returns the ascending complement of the answered set within
// [1, questionCount]. It drives the "go to first unanswered" action and
// the pre-submit confirmation.
func (s *AnsweredSet) Unanswered(questionCount int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	capHint := questionCount - len(s.positions)
	if capHint < 0 {
		capHint = 0
	}
	out := make([]int, 0, capHint)
	for p := 1; p <= questionCount; p++ {
		if _, ok := s.positions[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}
