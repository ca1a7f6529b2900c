package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"authwatch/internal/config"
	"authwatch/internal/model"
)

// Parse failures are recoverable: the caller logs, counts, and skips the
// line. They must never stop the stream.
var (
	ErrLineTooLong     = errors.New("line exceeds maximum length")
	ErrNoTimestamp     = errors.New("no recognizable timestamp")
	ErrNoOutcomeMarker = errors.New("no outcome marker")
	ErrInvalidIdentity = errors.New("invalid source identity")
)

type Parser struct {
	maxLineLength  int
	loc            *time.Location
	failureMarkers []string
	successMarkers []string
}

func New(cfg config.ParserConfig) *Parser {
	loc := time.UTC
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		}
	}
	maxLen := cfg.MaxLineLength
	if maxLen <= 0 {
		maxLen = 8192
	}
	return &Parser{
		maxLineLength:  maxLen,
		loc:            loc,
		failureMarkers: cfg.FailureMarkers,
		successMarkers: cfg.SuccessMarkers,
	}
}

// Parse turns one raw log line into a LoginEvent. The expected shape is a
// leading timestamp, an outcome marker somewhere in the message, and the
// source identity as the last whitespace-delimited field.
func (p *Parser) Parse(line string) (model.LoginEvent, error) {
	if len(line) > p.maxLineLength {
		return model.LoginEvent{}, fmt.Errorf("%w: %d bytes", ErrLineTooLong, len(line))
	}
	trim := strings.TrimSpace(line)
	if trim == "" {
		return model.LoginEvent{}, ErrNoTimestamp
	}

	tsText, rest := splitTimestamp(trim)
	if tsText == "" {
		return model.LoginEvent{}, ErrNoTimestamp
	}
	ts, err := ParseTimestamp(tsText, p.loc)
	if err != nil {
		return model.LoginEvent{}, fmt.Errorf("%w: %q", ErrNoTimestamp, tsText)
	}

	outcome, ok := p.matchOutcome(rest)
	if !ok {
		return model.LoginEvent{}, ErrNoOutcomeMarker
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return model.LoginEvent{}, ErrInvalidIdentity
	}
	identity := strings.TrimRight(fields[len(fields)-1], ".,;:")
	if !ValidIdentity(identity) {
		return model.LoginEvent{}, fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}

	return model.LoginEvent{
		Timestamp: ts.UTC(),
		Identity:  identity,
		Outcome:   outcome,
		Raw:       line,
	}, nil
}

func (p *Parser) matchOutcome(text string) (model.Outcome, bool) {
	for _, m := range p.failureMarkers {
		if m != "" && strings.Contains(text, m) {
			return model.OutcomeFailed, true
		}
	}
	for _, m := range p.successMarkers {
		if m != "" && strings.Contains(text, m) {
			return model.OutcomeSucceeded, true
		}
	}
	return "", false
}
