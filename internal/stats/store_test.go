package stats

import (
	"testing"

	"authwatch/internal/model"
)

func TestStoreCounters(t *testing.T) {
	s := NewStore()
	s.IncLine()
	s.IncLine()
	s.IncParseError("no_timestamp")
	s.IncEvent(model.OutcomeFailed)
	s.IncAlert(model.SeverityLow)
	s.IncAlert(model.SeverityLow)
	s.IncAlert(model.SeverityHigh)
	s.IncRejected()
	s.IncDropped()
	s.RecordSweep(4)
	s.SetTracked(17)

	snap := s.Snapshot()
	if snap.Lines != 2 {
		t.Fatalf("lines=%d", snap.Lines)
	}
	if snap.ParseErrors != 1 || snap.ParseErrorsByKind["no_timestamp"] != 1 {
		t.Fatalf("parse errors=%+v", snap.ParseErrorsByKind)
	}
	if snap.EventsFailed != 1 {
		t.Fatalf("failed=%d", snap.EventsFailed)
	}
	if snap.AlertsTotal != 3 || snap.AlertsBySeverity[model.SeverityLow] != 2 {
		t.Fatalf("alerts=%+v", snap.AlertsBySeverity)
	}
	if snap.Rejected != 1 || snap.Dropped != 1 {
		t.Fatalf("rejected=%d dropped=%d", snap.Rejected, snap.Dropped)
	}
	if snap.Sweeps != 1 || snap.Evicted != 4 {
		t.Fatalf("sweeps=%d evicted=%d", snap.Sweeps, snap.Evicted)
	}
	if snap.TrackedIdentities != 17 {
		t.Fatalf("tracked=%d", snap.TrackedIdentities)
	}
}

// The snapshot must be a copy: mutating it cannot leak back into the store.
func TestSnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.IncParseError("no_timestamp")
	snap := s.Snapshot()
	snap.ParseErrorsByKind["no_timestamp"] = 99
	if s.Snapshot().ParseErrorsByKind["no_timestamp"] != 1 {
		t.Fatalf("snapshot aliases internal map")
	}
}

func TestClearKeepsStartTime(t *testing.T) {
	s := NewStore()
	started := s.Snapshot().StartedAt
	s.IncLine()
	s.Clear()
	snap := s.Snapshot()
	if snap.Lines != 0 {
		t.Fatalf("lines=%d after clear", snap.Lines)
	}
	if !snap.StartedAt.Equal(started) {
		t.Fatalf("start time changed on clear")
	}
}
