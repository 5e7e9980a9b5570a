package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prepdesk/examtake/internal/config"
	"github.com/prepdesk/examtake/internal/model"
	"github.com/rs/zerolog"
)

// AttemptAPI is the typed boundary to the authoritative exam backend.
// Every session mutation of record goes through here; the session layer
// only caches and derives.
type AttemptAPI interface {
	StartAttempt(ctx context.Context, req model.StartAttemptRequest) (*model.AttemptMeta, error)
	FetchMeta(ctx context.Context, attemptID int64) (*model.AttemptMeta, error)
	FetchQuestion(ctx context.Context, attemptID int64, position int) (*model.Question, error)
	RecordAnswer(ctx context.Context, attemptID int64, questionID int64, selectedLabel string) error
	SubmitAttempt(ctx context.Context, attemptID int64) (*model.SubmitResult, error)
	FetchResult(ctx context.Context, attemptID int64) (*model.SubmitResult, error)
	FetchReview(ctx context.Context, attemptID int64) ([]model.ReviewItem, error)
}

// Client is the HTTP implementation of AttemptAPI.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     zerolog.Logger
}

var _ AttemptAPI = (*Client)(nil)

// NewClient creates a gateway client for the configured exam backend.
func NewClient(cfg *config.Config, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.ExamAPIBaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.ExamAPITimeout},
		log:     log.With().Str("component", "attempt_gateway").Logger(),
	}
}

// upstreamError is the error body shape the exam backend responds with.
type upstreamError struct {
	Detail string `json:"detail"`
}

// do performs one remote call: marshals body, forwards the caller's
// credential, decodes into out on 2xx, and returns a typed *Error otherwise.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cred := CredentialFrom(ctx); cred != "" {
		// Verbatim passthrough of the backend's own session cookie.
		req.Header.Set("Cookie", cred)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Network-level failure: no status to classify, always transient.
		return &Error{Kind: KindTransient, Op: op, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ue upstreamError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &ue)

		gerr := &Error{
			Kind:   classify(resp.StatusCode),
			Status: resp.StatusCode,
			Op:     op,
			Detail: ue.Detail,
		}
		c.log.Debug().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("kind", string(gerr.Kind)).
			Msg("Upstream call failed")
		return gerr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindTransient, Status: resp.StatusCode, Op: op, Detail: "malformed upstream response: " + err.Error()}
	}
	return nil
}

// StartAttempt creates the authoritative attempt record.
func (c *Client) StartAttempt(ctx context.Context, req model.StartAttemptRequest) (*model.AttemptMeta, error) {
	var meta model.AttemptMeta
	if err := c.do(ctx, "start_attempt", http.MethodPost, "/attempts/start", req, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// FetchMeta resolves attempt metadata. This is the only source the timer
// may be derived from; a locally cached copy is never a substitute.
func (c *Client) FetchMeta(ctx context.Context, attemptID int64) (*model.AttemptMeta, error) {
	var meta model.AttemptMeta
	path := fmt.Sprintf("/attempts/%d", attemptID)
	if err := c.do(ctx, "fetch_meta", http.MethodGet, path, nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// FetchQuestion loads the question at a 1-based position within the attempt.
func (c *Client) FetchQuestion(ctx context.Context, attemptID int64, position int) (*model.Question, error) {
	var q model.Question
	path := fmt.Sprintf("/attempts/%d/questions/%d", attemptID, position)
	if err := c.do(ctx, "fetch_question", http.MethodGet, path, nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// answerIn is the upstream wire payload for recording a selection.
type answerIn struct {
	QuestionID    int64  `json:"question_id"`
	SelectedLabel string `json:"selected_label"`
}

// RecordAnswer stores a selected choice for a question of the attempt.
func (c *Client) RecordAnswer(ctx context.Context, attemptID int64, questionID int64, selectedLabel string) error {
	path := fmt.Sprintf("/attempts/%d/answer", attemptID)
	return c.do(ctx, "record_answer", http.MethodPost, path, answerIn{QuestionID: questionID, SelectedLabel: selectedLabel}, nil)
}

// SubmitAttempt finalizes and scores the attempt. A KindConflict error
// means the attempt was already submitted; callers treat that as success.
func (c *Client) SubmitAttempt(ctx context.Context, attemptID int64) (*model.SubmitResult, error) {
	var res model.SubmitResult
	path := fmt.Sprintf("/attempts/%d/submit", attemptID)
	if err := c.do(ctx, "submit_attempt", http.MethodPost, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FetchResult re-reads the scored outcome of an already-submitted attempt.
func (c *Client) FetchResult(ctx context.Context, attemptID int64) (*model.SubmitResult, error) {
	var res model.SubmitResult
	path := fmt.Sprintf("/attempts/%d/result", attemptID)
	if err := c.do(ctx, "fetch_result", http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FetchReview returns the ordered review sequence. Only meaningful after
// submission; timed attempts are refused review upstream until then.
func (c *Client) FetchReview(ctx context.Context, attemptID int64) ([]model.ReviewItem, error) {
	var items []model.ReviewItem
	path := fmt.Sprintf("/attempts/%d/review", attemptID)
	if err := c.do(ctx, "fetch_review", http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}
