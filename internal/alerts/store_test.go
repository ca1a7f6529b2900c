package alerts

import (
	"fmt"
	"testing"
	"time"

	"authwatch/internal/model"
)

func alertAt(i int, ts time.Time) model.Alert {
	return model.Alert{
		ID:        fmt.Sprintf("a-%d", i),
		Timestamp: ts,
		Identity:  "192.168.1.10",
		Count:     i,
		Severity:  model.SeverityLow,
	}
}

func TestStoreKeepsMostRecent(t *testing.T) {
	s := NewStore(3)
	base := time.Date(2024, 5, 14, 10, 10, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		s.Add(alertAt(i, base.Add(time.Duration(i)*time.Second)))
	}
	if s.Len() != 3 {
		t.Fatalf("len=%d", s.Len())
	}
	list := s.List(0)
	if len(list) != 3 {
		t.Fatalf("list len=%d", len(list))
	}
	if list[0].ID != "a-3" || list[2].ID != "a-5" {
		t.Fatalf("order wrong: %s .. %s", list[0].ID, list[2].ID)
	}
}

func TestStoreListLimit(t *testing.T) {
	s := NewStore(10)
	base := time.Date(2024, 5, 14, 10, 10, 0, 0, time.UTC)
	for i := 1; i <= 4; i++ {
		s.Add(alertAt(i, base.Add(time.Duration(i)*time.Second)))
	}
	list := s.List(2)
	if len(list) != 2 {
		t.Fatalf("len=%d", len(list))
	}
	if list[0].ID != "a-3" || list[1].ID != "a-4" {
		t.Fatalf("expected newest two, got %s %s", list[0].ID, list[1].ID)
	}
}

func TestStoreSince(t *testing.T) {
	s := NewStore(10)
	base := time.Date(2024, 5, 14, 10, 10, 0, 0, time.UTC)
	for i := 1; i <= 4; i++ {
		s.Add(alertAt(i, base.Add(time.Duration(i)*time.Second)))
	}
	got := s.Since(base.Add(3 * time.Second))
	if len(got) != 2 {
		t.Fatalf("since len=%d", len(got))
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore(3)
	s.Add(alertAt(1, time.Now()))
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("len=%d after clear", s.Len())
	}
	if len(s.List(0)) != 0 {
		t.Fatalf("list not empty after clear")
	}
}
