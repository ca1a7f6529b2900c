package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"authwatch/internal/alerts"
	"authwatch/internal/config"
	"authwatch/internal/model"
	"authwatch/internal/stats"
)

// EngineControl is the slice of the engine the API is allowed to touch.
type EngineControl interface {
	Reset()
	Sweep(now time.Time) int
	TrackedIdentities() int
}

type Server struct {
	cfg     *config.Manager
	stats   *stats.Store
	alerts  *alerts.Store
	engine  EngineControl
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status     string          `json:"status"`
	Time       string          `json:"time"`
	Version    string          `json:"version"`
	ConfigPath string          `json:"config_path,omitempty"`
	Ingest     ingestStatus    `json:"ingest"`
	Detection  detectionStatus `json:"detection"`
}

type ingestStatus struct {
	Stdin     bool `json:"stdin"`
	FileTail  bool `json:"file_tail"`
	Syslog    bool `json:"syslog"`
	TCPStream bool `json:"tcp_stream"`
	Kafka     bool `json:"kafka"`
	REST      bool `json:"rest"`
}

type detectionStatus struct {
	WindowDuration    string `json:"window_duration"`
	EvictionGrace     string `json:"eviction_grace"`
	Threshold         int    `json:"threshold"`
	ResetOnSuccess    bool   `json:"reset_on_success"`
	MaxIdentities     int    `json:"max_identities"`
	OverflowPolicy    string `json:"overflow_policy"`
	TrackedIdentities int    `json:"tracked_identities"`
}

func Start(ctx context.Context, cfg *config.Manager, statsStore *stats.Store, alertsStore *alerts.Store, engine EngineControl, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		stats:   statsStore,
		alerts:  alertsStore,
		engine:  engine,
		logger:  logger,
		version: version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/stats", server.handleStats)
	mux.HandleFunc("/alerts", server.handleAlerts)
	mux.HandleFunc("/admin/sweep", server.handleSweep)
	mux.HandleFunc("/admin/reset", server.handleReset)

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
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	tracked := 0
	if s.engine != nil {
		tracked = s.engine.TrackedIdentities()
	}
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Ingest: ingestStatus{
			Stdin:     cfg.Ingest.Stdin.Enabled,
			FileTail:  cfg.Ingest.FileTail.Enabled,
			Syslog:    cfg.Ingest.Syslog.Enabled,
			TCPStream: cfg.Ingest.TCPStream.Enabled,
			Kafka:     cfg.Ingest.Kafka.Enabled,
			REST:      cfg.Ingest.REST.Enabled,
		},
		Detection: detectionStatus{
			WindowDuration:    cfg.Detection.WindowDuration.String(),
			EvictionGrace:     cfg.Detection.EvictionGrace.String(),
			Threshold:         cfg.Detection.Threshold,
			ResetOnSuccess:    cfg.Detection.ResetOnSuccess,
			MaxIdentities:     cfg.Detection.MaxIdentities,
			OverflowPolicy:    string(cfg.Detection.OverflowPolicy),
			TrackedIdentities: tracked,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.Alert
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.alerts.Since(ts)
	} else {
		list = s.alerts.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	evicted := 0
	if s.engine != nil {
		evicted = s.engine.Sweep(time.Now().UTC())
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "evicted": evicted})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.engine != nil {
		s.engine.Reset()
	}
	if s.alerts != nil {
		s.alerts.Clear()
	}
	if s.stats != nil {
		s.stats.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
