package util

import (
	"regexp"
	"strings"
)

var runOfHyphens = regexp.MustCompile(`-+`)

// Sanitize reduces an arbitrary name to a DNS label: lowercase, digits and
// hyphens only, no leading/trailing or consecutive hyphens, at most 63
// characters. Sanitize is idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
// An input that sanitizes to nothing returns the fixed fallback "service",
// since every service needs a usable label somewhere (container names,
// DNS hosts, volume names).
func Sanitize(name string) string {
	lower := strings.ToLower(name)

	var b strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}

	s := runOfHyphens.ReplaceAllString(b.String(), "-")
	s = strings.Trim(s, "-")

	if len(s) > 63 {
		s = strings.TrimRight(s[:63], "-")
	}

	if s == "" {
		return "service"
	}
	return s
}
