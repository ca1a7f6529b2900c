package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"authwatch/internal/alerts"
	"authwatch/internal/config"
	"authwatch/internal/ingest"
	"authwatch/internal/model"
	"authwatch/internal/parser"
	"authwatch/internal/stats"
)

// AlertEmitter hands finished alerts off for asynchronous delivery. Emit
// must not block; it returns false when the alert could not be queued.
type AlertEmitter interface {
	Emit(alert model.Alert) bool
}

// Engine is the single ordered ingestion path: one goroutine consumes raw
// lines, parses them, feeds the aggregator, and evaluates threshold policy.
// The aggregator and evaluator are only ever touched under e.mu.
type Engine struct {
	logger  *slog.Logger
	stats   *stats.Store
	alerts  *alerts.Store
	emitter AlertEmitter

	mu         sync.Mutex
	parser     *parser.Parser
	aggregator *Aggregator
	evaluator  *Evaluator
	detection  config.DetectionConfig
	lastSweep  time.Time
}

func NewEngine(cfg *config.Config, logger *slog.Logger, statsStore *stats.Store, alertsStore *alerts.Store, emitter AlertEmitter) (*Engine, error) {
	agg, err := NewAggregator(cfg.Detection)
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}
	if cfg.Detection.Threshold <= 0 {
		return nil, errors.New("threshold must be > 0")
	}
	return &Engine{
		logger:     logger,
		stats:      statsStore,
		alerts:     alertsStore,
		emitter:    emitter,
		parser:     parser.New(cfg.Parser),
		aggregator: agg,
		evaluator:  NewEvaluator(cfg.Detection.Threshold),
		detection:  cfg.Detection,
	}, nil
}

// Start consumes the shared line channel until the context is cancelled.
func (e *Engine) Start(ctx context.Context, in <-chan ingest.Line) {
	go func() {
		for {
			select {
			case line := <-in:
				e.ProcessLine(line.Text, line.Source)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Drain consumes whatever is still buffered on the channel without waiting
// for new input. Used during shutdown after the sources have stopped.
func (e *Engine) Drain(in <-chan ingest.Line) {
	for {
		select {
		case line := <-in:
			e.ProcessLine(line.Text, line.Source)
		default:
			return
		}
	}
}

// ProcessLine parses and ingests one raw line. Malformed lines are counted
// and skipped; they never abort the stream.
func (e *Engine) ProcessLine(text, source string) (model.Alert, bool) {
	if e.stats != nil {
		e.stats.IncLine()
	}
	ev, err := e.parseLine(text)
	if err != nil {
		if e.stats != nil {
			e.stats.IncParseError(parser.ErrorKind(err))
		}
		if e.logger != nil {
			e.logger.Debug("line skipped", "source", source, "err", err)
		}
		return model.Alert{}, false
	}
	return e.ProcessEvent(ev)
}

func (e *Engine) parseLine(text string) (model.LoginEvent, error) {
	e.mu.Lock()
	p := e.parser
	e.mu.Unlock()
	return p.Parse(text)
}

// ProcessEvent runs one event through the aggregator and evaluator. Sink
// I/O stays outside the critical section: alerts are handed to the emitter
// after the lock is released.
func (e *Engine) ProcessEvent(ev model.LoginEvent) (model.Alert, bool) {
	now := time.Now().UTC()
	e.mu.Lock()
	det := e.detection
	e.mu.Unlock()
	ev.Timestamp = clampTimestamp(ev.Timestamp, now, det.MaxClockSkew, det.MaxFutureSkew)

	if e.stats != nil {
		e.stats.IncEvent(ev.Outcome)
	}

	e.mu.Lock()
	e.maybeSweepLocked(now)
	wc, counted, err := e.aggregator.Ingest(ev)
	tracked := e.aggregator.Len()
	var alert model.Alert
	var ok bool
	if err == nil && counted {
		alert, ok = e.evaluator.Evaluate(wc, now)
	}
	e.mu.Unlock()

	if e.stats != nil {
		e.stats.SetTracked(tracked)
	}
	if err != nil {
		if e.stats != nil {
			e.stats.IncRejected()
		}
		if e.logger != nil {
			e.logger.Warn("identity rejected", "identity", ev.Identity, "err", err)
		}
		return model.Alert{}, false
	}
	if !ok {
		return model.Alert{}, false
	}

	if e.alerts != nil {
		e.alerts.Add(alert)
	}
	if e.stats != nil {
		e.stats.IncAlert(alert.Severity)
	}
	if e.logger != nil {
		e.logger.Warn("alert triggered",
			"identity", alert.Identity,
			"count", alert.Count,
			"severity", alert.Severity,
			"window_start", alert.WindowStart,
		)
	}
	if e.emitter != nil {
		if !e.emitter.Emit(alert) && e.stats != nil {
			e.stats.IncDropped()
		}
	}
	return alert, true
}

// Sweep evicts stale identity state and suppression notes. Also reachable
// through the admin API.
func (e *Engine) Sweep(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sweepLocked(now)
}

func (e *Engine) maybeSweepLocked(now time.Time) {
	if e.detection.SweepInterval <= 0 {
		return
	}
	if e.lastSweep.IsZero() {
		e.lastSweep = now
		return
	}
	if now.Sub(e.lastSweep) >= e.detection.SweepInterval {
		e.sweepLocked(now)
	}
}

func (e *Engine) sweepLocked(now time.Time) int {
	removed := e.aggregator.Sweep(now)
	e.evaluator.Sweep(now, e.detection.EvictionGrace)
	e.lastSweep = now
	if e.stats != nil {
		e.stats.RecordSweep(removed)
	}
	return removed
}

func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aggregator.Reset()
	e.evaluator.Reset()
	e.lastSweep = time.Time{}
}

// UpdateConfig applies reloaded detection and parser policy. Window states
// survive the swap.
func (e *Engine) UpdateConfig(cfg *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.parser = parser.New(cfg.Parser)
	e.aggregator.Reconfigure(cfg.Detection)
	e.evaluator.SetThreshold(cfg.Detection.Threshold)
	e.detection = cfg.Detection
}

// TrackedIdentities reports the current aggregator population.
func (e *Engine) TrackedIdentities() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aggregator.Len()
}

// clampTimestamp pulls wildly skewed timestamps back to the wall clock so a
// bad clock on one source cannot wedge or rewind window state.
func clampTimestamp(ts, now time.Time, maxPast, maxFuture time.Duration) time.Time {
	if ts.IsZero() {
		return now
	}
	if maxPast > 0 && now.Sub(ts) > maxPast {
		return now
	}
	if maxFuture > 0 && ts.Sub(now) > maxFuture {
		return now
	}
	return ts
}
