package engine

import (
	"time"

	"github.com/google/uuid"

	"authwatch/internal/model"
)

// suppressionNote remembers the last severity alerted for an identity's
// current window so repeats inside the same band stay quiet.
type suppressionNote struct {
	windowStart time.Time
	severity    model.Severity
	notedAt     time.Time
}

// Evaluator turns window counts into alerts. Pure policy: no I/O, no
// knowledge of sinks. At most one alert per (identity, window start) and
// severity band; escalation into a higher band re-emits with the updated
// severity and count.
type Evaluator struct {
	threshold int
	notes     map[string]suppressionNote
}

func NewEvaluator(threshold int) *Evaluator {
	return &Evaluator{
		threshold: threshold,
		notes:     make(map[string]suppressionNote),
	}
}

func (e *Evaluator) SetThreshold(threshold int) {
	if threshold > 0 {
		e.threshold = threshold
	}
}

func (e *Evaluator) Evaluate(wc model.WindowCount, now time.Time) (model.Alert, bool) {
	if wc.Count < e.threshold {
		return model.Alert{}, false
	}
	severity := e.severityFor(wc.Count)
	if note, ok := e.notes[wc.Identity]; ok && note.windowStart.Equal(wc.WindowStart) {
		if severityRank(severity) <= severityRank(note.severity) {
			return model.Alert{}, false
		}
	}
	e.notes[wc.Identity] = suppressionNote{
		windowStart: wc.WindowStart,
		severity:    severity,
		notedAt:     now,
	}
	return model.Alert{
		ID:          uuid.NewString(),
		Timestamp:   now,
		Identity:    wc.Identity,
		Count:       wc.Count,
		WindowStart: wc.WindowStart,
		WindowEnd:   wc.WindowEnd,
		Severity:    severity,
	}, true
}

// Sweep drops suppression notes past the grace period. Runs alongside the
// aggregator sweep so the two stay bounded together.
func (e *Evaluator) Sweep(now time.Time, grace time.Duration) {
	for identity, note := range e.notes {
		if now.Sub(note.notedAt) > grace {
			delete(e.notes, identity)
		}
	}
}

func (e *Evaluator) Reset() {
	e.notes = make(map[string]suppressionNote)
}

func (e *Evaluator) severityFor(count int) model.Severity {
	switch {
	case count >= e.threshold*4:
		return model.SeverityHigh
	case count >= e.threshold*2:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func severityRank(s model.Severity) int {
	switch s {
	case model.SeverityHigh:
		return 3
	case model.SeverityMedium:
		return 2
	case model.SeverityLow:
		return 1
	}
	return 0
}
