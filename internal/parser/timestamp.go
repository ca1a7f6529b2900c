package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reISOTimestamp    = regexp.MustCompile(`^\s*([0-9]{4}-[0-9]{2}-[0-9]{2}[ T][0-9:.Z+-]+)`)
	reSyslogTimestamp = regexp.MustCompile(`^\s*([A-Za-z]{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})`)
	reUnixTimestamp   = regexp.MustCompile(`^\s*(\d{10,13})\b`)
)

// splitTimestamp peels the leading timestamp text off a line and returns it
// together with the remainder.
func splitTimestamp(line string) (string, string) {
	for _, re := range []*regexp.Regexp{reISOTimestamp, reSyslogTimestamp, reUnixTimestamp} {
		m := re.FindStringSubmatchIndex(line)
		if len(m) >= 4 {
			ts := strings.TrimSpace(line[m[2]:m[3]])
			rest := strings.TrimSpace(line[m[3]:])
			return ts, rest
		}
	}
	return "", line
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z0700",
	"Jan 02 15:04:05",
	"Jan 2 15:04:05",
}

// ParseTimestamp accepts the layouts commonly seen in auth logs: RFC3339
// variants, space-separated dates, syslog month-day times (year taken from
// the wall clock), and unix seconds or milliseconds.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if isNumeric(value) {
		if ts, err := parseUnix(value); err == nil {
			return ts, nil
		}
	}
	for _, layout := range timestampLayouts {
		if layout == "Jan 02 15:04:05" || layout == "Jan 2 15:04:05" {
			if t, err := time.ParseInLocation(layout, value, loc); err == nil {
				now := time.Now().In(loc)
				return time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
			}
			continue
		}
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}

func isNumeric(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(value) > 0
}

func parseUnix(value string) (time.Time, error) {
	if len(value) >= 13 {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(0, ms*int64(time.Millisecond)).UTC(), nil
	}
	sec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}
