package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prepdesk/examtake/internal/attempt"
	"github.com/prepdesk/examtake/internal/gateway"
	"github.com/prepdesk/examtake/internal/model"
	"github.com/rs/zerolog"
)

// fakeAPI scripts the exam backend. Attempts are created sequentially.
type fakeAPI struct {
	mu         sync.Mutex
	nextID     int64
	metas      map[int64]*model.AttemptMeta
	metaCalls  int
	submitted  map[int64]bool
	startCreds []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextID: 1, metas: map[int64]*model.AttemptMeta{}, submitted: map[int64]bool{}}
}

func (f *fakeAPI) StartAttempt(ctx context.Context, req model.StartAttemptRequest) (*model.AttemptMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCreds = append(f.startCreds, gateway.CredentialFrom(ctx))
	meta := &model.AttemptMeta{
		AttemptID:        f.nextID,
		Mode:             req.Mode,
		QuestionCount:    req.QuestionCount,
		TimeLimitSeconds: req.TimeLimitSeconds,
		StartedAt:        time.Now(),
	}
	f.metas[f.nextID] = meta
	f.nextID++
	cp := *meta
	return &cp, nil
}

func (f *fakeAPI) FetchMeta(ctx context.Context, attemptID int64) (*model.AttemptMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	meta, ok := f.metas[attemptID]
	if !ok {
		return nil, &gateway.Error{Kind: gateway.KindNotFound, Status: 404, Op: "fetch_meta"}
	}
	cp := *meta
	cp.IsSubmitted = f.submitted[attemptID]
	return &cp, nil
}

func (f *fakeAPI) FetchQuestion(ctx context.Context, attemptID int64, position int) (*model.Question, error) {
	return &model.Question{AttemptID: attemptID, Position: position, QuestionID: int64(position)}, nil
}

func (f *fakeAPI) RecordAnswer(ctx context.Context, attemptID int64, questionID int64, selectedLabel string) error {
	return nil
}

func (f *fakeAPI) SubmitAttempt(ctx context.Context, attemptID int64) (*model.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitted[attemptID] {
		return nil, &gateway.Error{Kind: gateway.KindConflict, Status: 409, Op: "submit_attempt"}
	}
	f.submitted[attemptID] = true
	return &model.SubmitResult{AttemptID: attemptID, ScorePercent: 60, SubmittedAt: time.Now()}, nil
}

func (f *fakeAPI) FetchResult(ctx context.Context, attemptID int64) (*model.SubmitResult, error) {
	return &model.SubmitResult{AttemptID: attemptID, ScorePercent: 60}, nil
}

func (f *fakeAPI) FetchReview(ctx context.Context, attemptID int64) ([]model.ReviewItem, error) {
	return nil, nil
}

// memStores implements AnsweredStore, ProgressStore and ResultCache in
// memory for service tests.
type memStores struct {
	mu           sync.Mutex
	answered     map[int64][]int
	lastPos      map[int64]int
	lastPractice map[string]int64
	results      map[int64]*model.SubmitResult
}

func newMemStores() *memStores {
	return &memStores{
		answered:     map[int64][]int{},
		lastPos:      map[int64]int{},
		lastPractice: map[string]int64{},
		results:      map[int64]*model.SubmitResult{},
	}
}

func (m *memStores) Load(ctx context.Context, attemptID int64) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.answered[attemptID]...), nil
}

func (m *memStores) Add(ctx context.Context, attemptID int64, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered[attemptID] = append(m.answered[attemptID], position)
	return nil
}

func (m *memStores) SetLastPosition(ctx context.Context, attemptID int64, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPos[attemptID] = position
	return nil
}

func (m *memStores) LastPosition(ctx context.Context, attemptID int64) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.lastPos[attemptID]
	return p, ok, nil
}

func (m *memStores) SetLastPracticeAttempt(ctx context.Context, userKey string, attemptID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPractice[userKey] = attemptID
	return nil
}

func (m *memStores) LastPracticeAttempt(ctx context.Context, userKey string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.lastPractice[userKey]
	return id, ok, nil
}

func (m *memStores) SaveResult(ctx context.Context, attemptID int64, res *model.SubmitResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[attemptID] = res
	return nil
}

func (m *memStores) LoadResult(ctx context.Context, attemptID int64) (*model.SubmitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[attemptID], nil
}

func newTestService(api gateway.AttemptAPI, stores *memStores) *AttemptService {
	return NewAttemptService(api, stores, stores, stores, time.Hour, zerolog.Nop())
}

func TestStartAppliesDefaults(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	svc := newTestService(api, newMemStores())

	tests := []struct {
		name      string
		req       model.StartAttemptRequest
		wantCount int
		wantLimit *int
	}{
		{
			name:      "timed defaults",
			req:       model.StartAttemptRequest{Mode: model.ModeTimed},
			wantCount: DefaultQuestionCount,
			wantLimit: intptr(DefaultTimedSeconds),
		},
		{
			name:      "practice strips limit",
			req:       model.StartAttemptRequest{Mode: model.ModePractice, TimeLimitSeconds: intptr(600)},
			wantCount: DefaultQuestionCount,
			wantLimit: nil,
		},
		{
			name:      "explicit values pass through",
			req:       model.StartAttemptRequest{Mode: model.ModeTimed, QuestionCount: 30, TimeLimitSeconds: intptr(1800)},
			wantCount: 30,
			wantLimit: intptr(1800),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, err := svc.Start(ctx, "cred", tt.req)
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			meta := ctrl.Meta()
			if meta.QuestionCount != tt.wantCount {
				t.Errorf("QuestionCount = %d, want %d", meta.QuestionCount, tt.wantCount)
			}
			switch {
			case tt.wantLimit == nil && meta.TimeLimitSeconds != nil:
				t.Errorf("TimeLimitSeconds = %d, want nil", *meta.TimeLimitSeconds)
			case tt.wantLimit != nil && (meta.TimeLimitSeconds == nil || *meta.TimeLimitSeconds != *tt.wantLimit):
				t.Errorf("TimeLimitSeconds = %v, want %d", meta.TimeLimitSeconds, *tt.wantLimit)
			}
		})
	}
}

func intptr(v int) *int { return &v }

func TestSessionRevivesFromAuthoritativeMeta(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	svc := newTestService(api, newMemStores())

	ctrl, err := svc.Start(ctx, "cred", model.StartAttemptRequest{Mode: model.ModePractice, QuestionCount: 10})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := ctrl.AttemptID()

	// Live hit: same controller, no meta fetch.
	again, err := svc.Session(ctx, "cred", id)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if again != ctrl {
		t.Error("live session was not reused")
	}
	if api.metaCalls != 0 {
		t.Errorf("meta fetches on live hit = %d, want 0", api.metaCalls)
	}

	// After teardown the session is revived from the backend.
	svc.CloseAll()
	revived, err := svc.Session(ctx, "cred", id)
	if err != nil {
		t.Fatalf("Session after CloseAll: %v", err)
	}
	if revived == ctrl {
		t.Error("closed controller was handed out again")
	}
	if api.metaCalls != 1 {
		t.Errorf("meta fetches on revive = %d, want 1", api.metaCalls)
	}

	// Unknown attempts surface the backend's not-found.
	if _, err := svc.Session(ctx, "cred", 999); !gateway.IsNotFound(err) {
		t.Errorf("unknown attempt error = %v, want not-found", err)
	}
}

func TestSaveAndExit(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	stores := newMemStores()
	svc := newTestService(api, stores)

	practice, _ := svc.Start(ctx, "cred", model.StartAttemptRequest{Mode: model.ModePractice, QuestionCount: 10})
	if err := svc.SaveAndExit(ctx, "cred", practice.AttemptID(), 6); err != nil {
		t.Fatalf("SaveAndExit: %v", err)
	}
	if !practice.Closed() {
		t.Error("controller not closed after exit")
	}
	if stores.lastPos[practice.AttemptID()] != 6 {
		t.Errorf("recorded position = %d, want 6", stores.lastPos[practice.AttemptID()])
	}

	timed, _ := svc.Start(ctx, "cred", model.StartAttemptRequest{Mode: model.ModeTimed, QuestionCount: 10})
	if err := svc.SaveAndExit(ctx, "cred", timed.AttemptID(), 3); !errors.Is(err, ErrTimedNoExit) {
		t.Errorf("timed exit error = %v, want ErrTimedNoExit", err)
	}
	if timed.Closed() {
		t.Error("timed session was torn down by a refused exit")
	}
}

func TestSaveAndExitRefusedAfterSubmission(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	svc := newTestService(api, newMemStores())

	ctrl, _ := svc.Start(ctx, "cred", model.StartAttemptRequest{Mode: model.ModePractice, QuestionCount: 1})
	if st := ctrl.RequestSubmit(gateway.WithCredential(ctx, "cred")); st != attempt.StateConfirmingSubmit {
		t.Fatalf("state = %s, want confirmation (nothing answered)", st)
	}
	if st := ctrl.ConfirmSubmit(ctx); st != attempt.StateSubmitted {
		t.Fatalf("state = %s, want submitted", st)
	}

	if err := svc.SaveAndExit(ctx, "cred", ctrl.AttemptID(), 1); !errors.Is(err, attempt.ErrAlreadySubmitted) {
		t.Errorf("exit after submit error = %v, want ErrAlreadySubmitted", err)
	}
}

func TestLastPracticeResume(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	stores := newMemStores()
	svc := newTestService(api, stores)

	if _, _, found, err := svc.LastPractice(ctx, "cred"); err != nil || found {
		t.Fatalf("LastPractice before any attempt = (found=%v, err=%v)", found, err)
	}

	ctrl, _ := svc.Start(ctx, "cred", model.StartAttemptRequest{Mode: model.ModePractice, QuestionCount: 10})
	svc.SaveAndExit(ctx, "cred", ctrl.AttemptID(), 4)

	id, pos, found, err := svc.LastPractice(ctx, "cred")
	if err != nil || !found {
		t.Fatalf("LastPractice = (found=%v, err=%v)", found, err)
	}
	if id != ctrl.AttemptID() || pos != 4 {
		t.Errorf("resume target = (%d, %d), want (%d, 4)", id, pos, ctrl.AttemptID())
	}

	// A different caller has no pointer.
	if _, _, found, _ := svc.LastPractice(ctx, "other-cred"); found {
		t.Error("resume pointer leaked across credentials")
	}

	// Timed attempts never update the pointer.
	svc.Start(ctx, "cred", model.StartAttemptRequest{Mode: model.ModeTimed, QuestionCount: 10})
	id2, _, _, _ := svc.LastPractice(ctx, "cred")
	if id2 != ctrl.AttemptID() {
		t.Errorf("timed attempt moved the practice pointer to %d", id2)
	}
}

func TestTickEvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	stores := newMemStores()
	svc := NewAttemptService(api, stores, stores, stores, time.Minute, zerolog.Nop())

	ctrl, _ := svc.Start(ctx, "cred", model.StartAttemptRequest{Mode: model.ModePractice, QuestionCount: 10})

	svc.Tick(ctx, time.Now())
	if ctrl.Closed() {
		t.Fatal("fresh session evicted")
	}

	svc.Tick(ctx, time.Now().Add(2*time.Minute))
	if !ctrl.Closed() {
		t.Error("idle session not evicted")
	}
}

func TestTickFiresExpiredTimers(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	stores := newMemStores()
	svc := newTestService(api, stores)

	ctrl, err := svc.Start(gateway.WithCredential(ctx, "cred"), "cred", model.StartAttemptRequest{
		Mode:             model.ModeTimed,
		QuestionCount:    5,
		TimeLimitSeconds: intptr(60),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	svc.Tick(ctx, time.Now().Add(2*time.Minute))

	deadline := time.Now().Add(2 * time.Second)
	for ctrl.Snapshot(time.Now(), 0).Submission != attempt.StateSubmitted {
		if time.Now().After(deadline) {
			t.Fatal("expired session never reached the submitted state")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !ctrl.Snapshot(time.Now(), 0).AutoSubmitted {
		t.Error("AutoSubmitted = false after expiry tick")
	}
}
