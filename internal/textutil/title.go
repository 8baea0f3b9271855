package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeTitle returns title in NFC form with control characters removed
// and whitespace runs collapsed to a single space.
func NormalizeTitle(title string) string {
	title = norm.NFC.String(title)
	title = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, title)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(title, " "))
}

// ValidVideoID reports whether id is safe to use as a single path segment:
// non-empty, at most 64 bytes, and made of letters, digits, '-' or '_'.
func ValidVideoID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
