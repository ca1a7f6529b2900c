package parser

import "errors"

// ErrorKind labels a parse error for counters and logs.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrLineTooLong):
		return "too_long"
	case errors.Is(err, ErrNoTimestamp):
		return "no_timestamp"
	case errors.Is(err, ErrNoOutcomeMarker):
		return "no_outcome_marker"
	case errors.Is(err, ErrInvalidIdentity):
		return "invalid_identity"
	default:
		return "other"
	}
}
