package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"authwatch/internal/model"
)

// WriterSink serializes alerts as JSON lines to any writer: stdout for
// piping, or an append-only report file.
type WriterSink struct {
	name string
	mu   sync.Mutex
	w    io.Writer
	c    io.Closer
}

func NewStdout() *WriterSink {
	return &WriterSink{name: "stdout", w: os.Stdout}
}

func NewFile(path string) (*WriterSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open alert file: %w", err)
	}
	return &WriterSink{name: "file", w: f, c: f}, nil
}

func (s *WriterSink) Name() string {
	return s.name
}

func (s *WriterSink) Deliver(_ context.Context, alert model.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write alert: %w", err)
	}
	return nil
}

func (s *WriterSink) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}
