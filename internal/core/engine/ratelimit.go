package engine

import (
	"time"

	"github.com/namelens/repolens/internal/core"
)

// Default quota thresholds.
const (
	DefaultLowRemaining       = 100
	DefaultExhaustedRemaining = 0
	DefaultPauseBuffer        = 10 * time.Second
)

// Action is what the engine does after a call reported quota telemetry.
type Action int

const (
	ActionContinue Action = iota
	ActionRotate
	ActionPause
)

func (a Action) String() string {
	switch a {
	case ActionRotate:
		return "rotate"
	case ActionPause:
		return "pause"
	default:
		return "continue"
	}
}

// Decision is the tracker's verdict for one quota snapshot.
type Decision struct {
	Action Action
	Until  time.Time
	Reason string
}

// Tracker interprets quota snapshots.
type Tracker struct {
	LowRemaining       int
	ExhaustedRemaining int
	PauseBuffer        time.Duration
	Clock              func() time.Time
}

// NewTracker returns a tracker with the default thresholds.
func NewTracker() *Tracker {
	return &Tracker{
		LowRemaining:       DefaultLowRemaining,
		ExhaustedRemaining: DefaultExhaustedRemaining,
		PauseBuffer:        DefaultPauseBuffer,
	}
}

// Decide returns Continue, Rotate or Pause for the snapshot. Rotation is
// preferred whenever the pool has another credential to move to.
func (t *Tracker) Decide(snapshot core.QuotaSnapshot, poolSize int) Decision {
	var reason string
	switch {
	case snapshot.Remaining <= t.exhausted():
		reason = "exhausted"
	case snapshot.Remaining < t.low():
		reason = "low"
	default:
		return Decision{Action: ActionContinue}
	}

	if poolSize > 1 {
		return Decision{Action: ActionRotate, Reason: reason}
	}
	return Decision{Action: ActionPause, Until: t.pauseUntil(snapshot.ResetAt), Reason: reason}
}

func (t *Tracker) pauseUntil(resetAt time.Time) time.Time {
	now := t.now()
	if resetAt.Before(now) {
		resetAt = now
	}
	return resetAt.Add(t.buffer())
}

func (t *Tracker) low() int {
	if t == nil {
		return DefaultLowRemaining
	}
	return t.LowRemaining
}

func (t *Tracker) exhausted() int {
	if t == nil {
		return DefaultExhaustedRemaining
	}
	return t.ExhaustedRemaining
}

func (t *Tracker) buffer() time.Duration {
	if t == nil || t.PauseBuffer < 0 {
		return DefaultPauseBuffer
	}
	return t.PauseBuffer
}

func (t *Tracker) now() time.Time {
	if t != nil && t.Clock != nil {
		return t.Clock()
	}
	return time.Now().UTC()
}
