package model

import "time"

type Outcome string

const (
	OutcomeFailed    Outcome = "failed"
	OutcomeSucceeded Outcome = "succeeded"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// LoginEvent is one parsed authentication attempt. Immutable after parsing.
type LoginEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Identity  string    `json:"identity"`
	Outcome   Outcome   `json:"outcome"`
	Raw       string    `json:"raw,omitempty"`
}

// WindowCount is the aggregator's view of one identity after an ingest,
// handed to the evaluator so it never has to look state up again.
type WindowCount struct {
	Identity    string    `json:"identity"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

type Alert struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Identity    string    `json:"identity"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Severity    Severity  `json:"severity"`
}
