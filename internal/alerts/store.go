package alerts

import (
	"sync"
	"time"

	"authwatch/internal/model"
)

// Store is a bounded ring of recent alerts for the inspection API. Older
// entries fall off once the limit is reached.
type Store struct {
	mu    sync.RWMutex
	buf   []model.Alert
	next  int
	full  bool
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{buf: make([]model.Alert, limit), limit: limit}
}

func (s *Store) Add(alert model.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf[s.next] = alert
	s.next++
	if s.next == s.limit {
		s.next = 0
		s.full = true
	}
}

// List returns up to limit alerts, oldest first. limit <= 0 means all.
func (s *Store) List(limit int) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ordered := s.orderedLocked()
	if limit <= 0 || limit > len(ordered) {
		limit = len(ordered)
	}
	return ordered[len(ordered)-limit:]
}

func (s *Store) Since(ts time.Time) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Alert, 0)
	for _, a := range s.orderedLocked() {
		if !a.Timestamp.Before(ts) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return s.limit
	}
	return s.next
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = make([]model.Alert, s.limit)
	s.next = 0
	s.full = false
}

func (s *Store) orderedLocked() []model.Alert {
	if !s.full {
		out := make([]model.Alert, s.next)
		copy(out, s.buf[:s.next])
		return out
	}
	out := make([]model.Alert, 0, s.limit)
	out = append(out, s.buf[s.next:]...)
	out = append(out, s.buf[:s.next]...)
	return out
}
