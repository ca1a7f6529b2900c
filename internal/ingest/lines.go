package ingest

import (
	"context"
	"log/slog"
	"time"
)

// Line is one raw log line plus the source it arrived from. Parsing happens
// downstream in the engine so every source shares one error-accounting path.
type Line struct {
	Source string
	Text   string
}

// SendNonBlocking enqueues a line without ever stalling a source. When the
// channel is full the line is dropped and logged; a slow consumer must not
// back-pressure into listeners.
func SendNonBlocking(ctx context.Context, out chan<- Line, line Line, logger *slog.Logger) bool {
	select {
	case out <- line:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("line channel full, dropping line", "source", line.Source)
		}
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
