package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authwatch/internal/config"
	"authwatch/internal/model"
)

func testParser() *Parser {
	return New(config.DefaultConfig().Parser)
}

func TestParseFailedLogin(t *testing.T) {
	p := testParser()
	ev, err := p.Parse("2024-05-14T10:10:01Z sshd[1022]: Failed password for root from 192.168.1.10")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFailed, ev.Outcome)
	assert.Equal(t, "192.168.1.10", ev.Identity)
	assert.Equal(t, "2024-05-14T10:10:01Z", ev.Timestamp.Format(time.RFC3339))
}

func TestParseAcceptedLogin(t *testing.T) {
	p := testParser()
	ev, err := p.Parse("2024-05-14 10:11:30 sshd[1022]: Accepted password for admin from 10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSucceeded, ev.Outcome)
	assert.Equal(t, "10.0.0.5", ev.Identity)
}

func TestParseSyslogTimestamp(t *testing.T) {
	p := testParser()
	ev, err := p.Parse("May 14 10:10:07 host sshd[1022]: Failed password for root from 192.168.1.10")
	require.NoError(t, err)
	assert.Equal(t, time.May, ev.Timestamp.Month())
	assert.Equal(t, 14, ev.Timestamp.Day())
	assert.Equal(t, 10, ev.Timestamp.UTC().Hour())
}

func TestParseUnixTimestamp(t *testing.T) {
	p := testParser()
	ev, err := p.Parse("1715681401 Failed login from fe80::1")
	require.NoError(t, err)
	assert.Equal(t, int64(1715681401), ev.Timestamp.Unix())
	assert.Equal(t, "fe80::1", ev.Identity)
}

// Structured fields must survive a parse and re-serialization untouched.
func TestParseRoundTrip(t *testing.T) {
	p := testParser()
	cases := []struct {
		ts       string
		outcome  model.Outcome
		identity string
	}{
		{"2024-05-14T10:10:01Z", model.OutcomeFailed, "192.168.1.10"},
		{"2024-05-14T10:10:02Z", model.OutcomeFailed, "10.0.0.5"},
		{"2024-05-14T10:10:07Z", model.OutcomeSucceeded, "bastion.example.com"},
	}
	for _, tc := range cases {
		marker := "Failed login"
		if tc.outcome == model.OutcomeSucceeded {
			marker = "Accepted login"
		}
		line := tc.ts + " " + marker + " from " + tc.identity
		ev, err := p.Parse(line)
		require.NoError(t, err, line)
		assert.Equal(t, tc.ts, ev.Timestamp.Format(time.RFC3339))
		assert.Equal(t, tc.identity, ev.Identity)
		assert.Equal(t, tc.outcome, ev.Outcome)
		assert.Equal(t, line, ev.Raw)
	}
}

func TestParseErrors(t *testing.T) {
	p := testParser()
	tests := []struct {
		name string
		line string
		want error
	}{
		{"empty", "", ErrNoTimestamp},
		{"no timestamp", "Failed password for root from 192.168.1.10", ErrNoTimestamp},
		{"no marker", "2024-05-14T10:10:01Z something happened on 192.168.1.10", ErrNoOutcomeMarker},
		{"bad identity", "2024-05-14T10:10:01Z Failed login from 54321", ErrInvalidIdentity},
		{"too long", "2024-05-14T10:10:01Z Failed login from 192.168.1.10 " + strings.Repeat("x", 9000), ErrLineTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestParseErrorKinds(t *testing.T) {
	assert.Equal(t, "too_long", ErrorKind(ErrLineTooLong))
	assert.Equal(t, "no_timestamp", ErrorKind(ErrNoTimestamp))
	assert.Equal(t, "no_outcome_marker", ErrorKind(ErrNoOutcomeMarker))
	assert.Equal(t, "invalid_identity", ErrorKind(ErrInvalidIdentity))
	assert.Equal(t, "other", ErrorKind(errors.New("boom")))
}

func TestValidIdentity(t *testing.T) {
	valid := []string{"192.168.1.10", "10.0.0.5", "fe80::1", "2001:db8::2", "host", "bastion.example.com", "web-3.internal"}
	for _, s := range valid {
		assert.True(t, ValidIdentity(s), s)
	}
	invalid := []string{"", "54321", "1.2.3", "-bad.example.com", "a..b", strings.Repeat("a", 254)}
	for _, s := range invalid {
		assert.False(t, ValidIdentity(s), s)
	}
}

func TestMaxLineLengthConfigurable(t *testing.T) {
	cfg := config.DefaultConfig().Parser
	cfg.MaxLineLength = 64
	p := New(cfg)
	_, err := p.Parse("2024-05-14T10:10:01Z Failed login from 192.168.1.10 padding padding")
	assert.True(t, errors.Is(err, ErrLineTooLong))
}
