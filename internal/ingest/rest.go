package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"authwatch/internal/config"
)

// StartREST exposes POST /lines for shippers without syslog or kafka: the
// body is newline-delimited raw log text.
func StartREST(ctx context.Context, cfg *config.Manager, out chan<- Line, logger *slog.Logger) *http.Server {
	current := cfg.Get().Ingest.REST
	if !current.Enabled {
		if logger != nil {
			logger.Info("rest ingest disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("rest ingest enabled", "addr", current.Addr)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/lines", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		accepted := 0
		dropped := 0
		scanner := bufio.NewScanner(http.MaxBytesReader(w, r.Body, 4<<20))
		scanner.Buffer(make([]byte, 0, 8192), 1024*1024)
		for scanner.Scan() {
			text := scanner.Text()
			if strings.TrimSpace(text) == "" {
				continue
			}
			if SendNonBlocking(r.Context(), out, Line{Source: "rest", Text: text}, logger) {
				accepted++
			} else {
				dropped++
			}
		}
		if err := scanner.Err(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{
			"accepted": accepted,
			"dropped":  dropped,
		})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("rest ingest server error", "err", err)
			}
		}
	}()
	return httpServer
}
