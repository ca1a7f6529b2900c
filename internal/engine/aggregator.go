package engine

import (
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"authwatch/internal/config"
	"authwatch/internal/model"
)

// ErrIdentityLimit is returned under the reject overflow policy when the
// tracked-identity map is full. Recoverable: the caller counts and skips.
var ErrIdentityLimit = errors.New("tracked identity limit reached")

// WindowState is the per-identity failure counter. Owned exclusively by the
// aggregator; callers only ever see WindowCount copies.
type WindowState struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

// Aggregator counts failed attempts per identity over fixed-origin windows.
// A window keeps its start until it expires; the first failure past
// window_start + window_duration re-anchors it. This is deliberately not a
// true sliding window: memory stays bounded to one state per active identity
// and no event log is retained.
//
// Single-writer: all mutation goes through the owning engine's lock.
type Aggregator struct {
	windowDuration time.Duration
	evictionGrace  time.Duration
	resetOnSuccess bool
	maxIdentities  int
	overflow       config.OverflowPolicy
	states         *lru.Cache[string, *WindowState]
}

func NewAggregator(det config.DetectionConfig) (*Aggregator, error) {
	if det.WindowDuration <= 0 {
		return nil, errors.New("window duration must be > 0")
	}
	if det.EvictionGrace <= 0 {
		return nil, errors.New("eviction grace must be > 0")
	}
	if det.MaxIdentities <= 0 {
		return nil, errors.New("max identities must be > 0")
	}
	states, err := lru.New[string, *WindowState](det.MaxIdentities)
	if err != nil {
		return nil, fmt.Errorf("identity cache: %w", err)
	}
	return &Aggregator{
		windowDuration: det.WindowDuration,
		evictionGrace:  det.EvictionGrace,
		resetOnSuccess: det.ResetOnSuccess,
		maxIdentities:  det.MaxIdentities,
		overflow:       det.OverflowPolicy,
		states:         states,
	}, nil
}

// Ingest folds one event into the per-identity state and returns the updated
// count so the evaluator needs no second lookup. The bool is false when the
// event did not produce a countable window (success, or rejected overflow).
func (a *Aggregator) Ingest(ev model.LoginEvent) (model.WindowCount, bool, error) {
	if ev.Outcome == model.OutcomeSucceeded {
		if a.resetOnSuccess {
			a.states.Remove(ev.Identity)
		}
		return model.WindowCount{}, false, nil
	}

	st, ok := a.states.Get(ev.Identity)
	switch {
	case !ok:
		if a.overflow == config.OverflowReject && a.states.Len() >= a.maxIdentities {
			return model.WindowCount{}, false, ErrIdentityLimit
		}
		st = &WindowState{count: 1, windowStart: ev.Timestamp, lastSeen: ev.Timestamp}
		a.states.Add(ev.Identity, st)
	case ev.Timestamp.Sub(st.windowStart) >= a.windowDuration:
		// Window expired: re-anchor, do not carry the old count over.
		st.count = 1
		st.windowStart = ev.Timestamp
		st.lastSeen = laterOf(st.lastSeen, ev.Timestamp)
	default:
		st.count++
		st.lastSeen = laterOf(st.lastSeen, ev.Timestamp)
	}

	return model.WindowCount{
		Identity:    ev.Identity,
		Count:       st.count,
		WindowStart: st.windowStart,
		WindowEnd:   st.windowStart.Add(a.windowDuration),
	}, true, nil
}

// Sweep evicts identities not seen within the eviction grace. Idempotent:
// sweeping twice with no ingests in between changes nothing the second time.
func (a *Aggregator) Sweep(now time.Time) int {
	removed := 0
	for _, key := range a.states.Keys() {
		st, ok := a.states.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(st.lastSeen) > a.evictionGrace {
			a.states.Remove(key)
			removed++
		}
	}
	return removed
}

func (a *Aggregator) Len() int {
	return a.states.Len()
}

func (a *Aggregator) Reset() {
	a.states.Purge()
}

// Reconfigure applies updated detection policy in place. Existing window
// states survive; the identity cap is resized.
func (a *Aggregator) Reconfigure(det config.DetectionConfig) {
	if det.WindowDuration > 0 {
		a.windowDuration = det.WindowDuration
	}
	if det.EvictionGrace > 0 {
		a.evictionGrace = det.EvictionGrace
	}
	a.resetOnSuccess = det.ResetOnSuccess
	if det.OverflowPolicy != "" {
		a.overflow = det.OverflowPolicy
	}
	if det.MaxIdentities > 0 && det.MaxIdentities != a.maxIdentities {
		a.maxIdentities = det.MaxIdentities
		a.states.Resize(det.MaxIdentities)
	}
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
