package attempt

import (
	"time"

	"github.com/prepdesk/examtake/internal/model"
)

// DangerThresholdSeconds marks the last stretch of a timed attempt.
// Fixed policy, not configurable.
const DangerThresholdSeconds = 300

// TimerView is the countdown projection shown to the candidate. It is
// recomputed from (started_at, time_limit, now) on every tick and never
// stored, which keeps it correct across reloads and suspended tabs.
type TimerView struct {
	RemainingSeconds float64 `json:"remaining_seconds"`
	TotalSeconds     int     `json:"total_seconds"`
	PercentElapsed   float64 `json:"percent_elapsed"`
	IsDanger         bool    `json:"is_danger"`
	IsExpired        bool    `json:"is_expired"`
}

// ProjectTimer derives the countdown for a timed attempt at the given
// instant. Returns nil for practice attempts or when no time limit is set;
// those sessions have no timer and cannot auto-submit.
//
// RemainingSeconds is deliberately not floored at zero so the expiry edge
// (remaining <= 0) is detected exactly; display flooring is the UI's job.
func ProjectTimer(meta *model.AttemptMeta, now time.Time) *TimerView {
	if meta == nil || !meta.Timed() {
		return nil
	}

	total := *meta.TimeLimitSeconds
	elapsed := now.Sub(meta.StartedAt).Seconds()
	remaining := float64(total) - elapsed

	pct := elapsed / float64(total) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	return &TimerView{
		RemainingSeconds: remaining,
		TotalSeconds:     total,
		PercentElapsed:   pct,
		IsDanger:         remaining <= DangerThresholdSeconds,
		IsExpired:        remaining <= 0,
	}
}
