package ingest

import (
	"context"
	"log/slog"

	"authwatch/internal/config"
)

// StartTCPStream accepts raw newline-delimited log streams, one connection
// per shipper.
func StartTCPStream(ctx context.Context, cfg *config.Manager, out chan<- Line, logger *slog.Logger) {
	current := cfg.Get().Ingest.TCPStream
	if !current.Enabled {
		if logger != nil {
			logger.Info("tcp stream ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("tcp stream ingest enabled", "addr", current.Addr)
	}
	go listenTCP(ctx, current.Addr, "tcp_stream", out, logger)
}
