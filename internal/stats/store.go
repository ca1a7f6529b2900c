package stats

import (
	"sync"
	"time"

	"authwatch/internal/model"
)

// Store collects ingestion and detection counters. Written by the engine,
// read by the inspection API.
type Store struct {
	mu   sync.Mutex
	snap Snapshot
}

type Snapshot struct {
	StartedAt         time.Time                `json:"started_at"`
	Lines             int64                    `json:"lines"`
	ParseErrors       int64                    `json:"parse_errors"`
	ParseErrorsByKind map[string]int64         `json:"parse_errors_by_kind,omitempty"`
	EventsFailed      int64                    `json:"events_failed"`
	EventsSucceeded   int64                    `json:"events_succeeded"`
	AlertsTotal       int64                    `json:"alerts_total"`
	AlertsBySeverity  map[model.Severity]int64 `json:"alerts_by_severity,omitempty"`
	Rejected          int64                    `json:"rejected_identities"`
	Dropped           int64                    `json:"dropped_alerts"`
	TrackedIdentities int                      `json:"tracked_identities"`
	Sweeps            int64                    `json:"sweeps"`
	Evicted           int64                    `json:"evicted_identities"`
}

func NewStore() *Store {
	s := &Store{}
	s.snap.StartedAt = time.Now().UTC()
	s.snap.ParseErrorsByKind = make(map[string]int64)
	s.snap.AlertsBySeverity = make(map[model.Severity]int64)
	return s
}

func (s *Store) IncLine() {
	s.mu.Lock()
	s.snap.Lines++
	s.mu.Unlock()
}

func (s *Store) IncParseError(kind string) {
	s.mu.Lock()
	s.snap.ParseErrors++
	s.snap.ParseErrorsByKind[kind]++
	s.mu.Unlock()
}

func (s *Store) IncEvent(outcome model.Outcome) {
	s.mu.Lock()
	if outcome == model.OutcomeFailed {
		s.snap.EventsFailed++
	} else {
		s.snap.EventsSucceeded++
	}
	s.mu.Unlock()
}

func (s *Store) IncAlert(severity model.Severity) {
	s.mu.Lock()
	s.snap.AlertsTotal++
	s.snap.AlertsBySeverity[severity]++
	s.mu.Unlock()
}

func (s *Store) IncRejected() {
	s.mu.Lock()
	s.snap.Rejected++
	s.mu.Unlock()
}

func (s *Store) IncDropped() {
	s.mu.Lock()
	s.snap.Dropped++
	s.mu.Unlock()
}

func (s *Store) RecordSweep(evicted int) {
	s.mu.Lock()
	s.snap.Sweeps++
	s.snap.Evicted += int64(evicted)
	s.mu.Unlock()
}

func (s *Store) SetTracked(n int) {
	s.mu.Lock()
	s.snap.TrackedIdentities = n
	s.mu.Unlock()
}

// Snapshot returns a copy safe to serialize without holding the lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap
	out.ParseErrorsByKind = make(map[string]int64, len(s.snap.ParseErrorsByKind))
	for k, v := range s.snap.ParseErrorsByKind {
		out.ParseErrorsByKind[k] = v
	}
	out.AlertsBySeverity = make(map[model.Severity]int64, len(s.snap.AlertsBySeverity))
	for k, v := range s.snap.AlertsBySeverity {
		out.AlertsBySeverity[k] = v
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	started := s.snap.StartedAt
	s.snap = Snapshot{
		StartedAt:         started,
		ParseErrorsByKind: make(map[string]int64),
		AlertsBySeverity:  make(map[model.Severity]int64),
	}
}
