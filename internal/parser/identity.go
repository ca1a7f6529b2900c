package parser

import (
	"net/netip"
	"regexp"
	"strings"
)

var reHostnameLabel = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// ValidIdentity reports whether s is an IPv4/IPv6 address or an RFC 1123
// hostname. Bare numbers are rejected so trailing fields like port numbers
// never get mistaken for an identity.
func ValidIdentity(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	if _, err := netip.ParseAddr(s); err == nil {
		return true
	}
	if isNumeric(strings.ReplaceAll(s, ".", "")) {
		return false
	}
	labels := strings.Split(strings.TrimSuffix(s, "."), ".")
	for _, label := range labels {
		if !reHostnameLabel.MatchString(label) {
			return false
		}
	}
	return true
}
