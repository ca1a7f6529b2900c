package engine

import (
	"testing"
	"time"

	"authwatch/internal/model"
)

func windowCount(identity string, count int, start time.Time) model.WindowCount {
	return model.WindowCount{
		Identity:    identity,
		Count:       count,
		WindowStart: start,
		WindowEnd:   start.Add(60 * time.Second),
	}
}

func TestBelowThresholdNoAlert(t *testing.T) {
	eval := NewEvaluator(3)
	start := time.Date(2024, 5, 14, 10, 10, 0, 0, time.UTC)
	for count := 1; count <= 2; count++ {
		if _, ok := eval.Evaluate(windowCount("192.168.1.10", count, start), start); ok {
			t.Fatalf("unexpected alert at count %d", count)
		}
	}
}

func TestThresholdEmitsOnce(t *testing.T) {
	eval := NewEvaluator(3)
	start := time.Date(2024, 5, 14, 10, 10, 0, 0, time.UTC)
	alert, ok := eval.Evaluate(windowCount("192.168.1.10", 3, start), start)
	if !ok {
		t.Fatalf("expected alert at threshold")
	}
	if alert.Severity != model.SeverityLow {
		t.Fatalf("severity=%s", alert.Severity)
	}
	if alert.Count != 3 {
		t.Fatalf("count=%d", alert.Count)
	}
	if alert.ID == "" {
		t.Fatalf("missing alert id")
	}

	// Repeats in the same band stay suppressed.
	for count := 3; count <= 5; count++ {
		if _, ok := eval.Evaluate(windowCount("192.168.1.10", count, start), start); ok {
			t.Fatalf("suppression failed at count %d", count)
		}
	}
}

func TestEscalationReEmits(t *testing.T) {
	eval := NewEvaluator(3)
	start := time.Date(2024, 5, 14, 10, 10, 0, 0, time.UTC)
	eval.Evaluate(windowCount("192.168.1.10", 3, start), start)

	alert, ok := eval.Evaluate(windowCount("192.168.1.10", 6, start), start)
	if !ok || alert.Severity != model.SeverityMedium {
		t.Fatalf("expected medium escalation, ok=%v severity=%s", ok, alert.Severity)
	}
	if _, ok := eval.Evaluate(windowCount("192.168.1.10", 7, start), start); ok {
		t.Fatalf("re-emit inside medium band")
	}
	alert, ok = eval.Evaluate(windowCount("192.168.1.10", 12, start), start)
	if !ok || alert.Severity != model.SeverityHigh {
		t.Fatalf("expected high escalation, ok=%v severity=%s", ok, alert.Severity)
	}
	if _, ok := eval.Evaluate(windowCount("192.168.1.10", 50, start), start); ok {
		t.Fatalf("high band must not re-emit")
	}
}

func TestNewWindowClearsSuppression(t *testing.T) {
	eval := NewEvaluator(3)
	start := time.Date(2024, 5, 14, 10, 10, 0, 0, time.UTC)
	eval.Evaluate(windowCount("192.168.1.10", 3, start), start)

	next := start.Add(60 * time.Second)
	alert, ok := eval.Evaluate(windowCount("192.168.1.10", 3, next), next)
	if !ok {
		t.Fatalf("expected alert in re-anchored window")
	}
	if !alert.WindowStart.Equal(next) {
		t.Fatalf("window start %s", alert.WindowStart)
	}
}

func TestSeverityBands(t *testing.T) {
	eval := NewEvaluator(3)
	cases := []struct {
		count int
		want  model.Severity
	}{
		{3, model.SeverityLow},
		{5, model.SeverityLow},
		{6, model.SeverityMedium},
		{11, model.SeverityMedium},
		{12, model.SeverityHigh},
		{100, model.SeverityHigh},
	}
	for _, tc := range cases {
		if got := eval.severityFor(tc.count); got != tc.want {
			t.Fatalf("count %d: severity %s, want %s", tc.count, got, tc.want)
		}
	}
}

func TestEvaluatorSweepDropsStaleNotes(t *testing.T) {
	eval := NewEvaluator(3)
	start := time.Date(2024, 5, 14, 10, 10, 0, 0, time.UTC)
	eval.Evaluate(windowCount("192.168.1.10", 3, start), start)
	if len(eval.notes) != 1 {
		t.Fatalf("notes=%d", len(eval.notes))
	}
	eval.Sweep(start.Add(121*time.Second), 120*time.Second)
	if len(eval.notes) != 0 {
		t.Fatalf("stale note survived sweep")
	}
}
