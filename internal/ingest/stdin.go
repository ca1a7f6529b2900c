package ingest

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
)

// StartStdin reads lines from standard input until EOF, for the classic
// `tail -f auth.log | authwatch` pipe. The returned channel closes when the
// input is exhausted.
func StartStdin(ctx context.Context, out chan<- Line, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		readLines(ctx, os.Stdin, "stdin", out, logger)
		if logger != nil {
			logger.Info("stdin ingest finished")
		}
	}()
	return done
}

func readLines(ctx context.Context, r io.Reader, source string, out chan<- Line, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 8192), 1024*1024)
	for scanner.Scan() {
		SendNonBlocking(ctx, out, Line{Source: source, Text: scanner.Text()}, logger)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
	if err := scanner.Err(); err != nil && logger != nil {
		logger.Warn("scanner error", "source", source, "err", err)
	}
}
