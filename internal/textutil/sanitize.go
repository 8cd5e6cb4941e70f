package textutil

import (
	"strings"
	"unicode"
)

// PathToken converts an action or direction name into a lowercase path
// segment. ASCII letters, digits, '-' and '_' survive; everything else becomes
// '_'. Returns "unknown" when nothing usable remains.
func PathToken(value string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return unicode.ToLower(r)
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(value))
	out := strings.Trim(mapped, "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
