// Package folders turns supplier names, vendor addresses and message
// metadata into safe, bounded filesystem paths under the storage root.
package folders

import (
	"strings"
)

// DefaultMaxLength bounds a sanitized path segment when no limit is given.
const DefaultMaxLength = 120

// Placeholder replaces names that sanitize to nothing.
const Placeholder = "unknown"

// Sanitize converts name into a single filesystem segment containing only
// [A-Za-z0-9_.-]. Runs of whitespace become one underscore and any other
// character becomes an underscore. Results longer than maxLength are cut,
// keeping a trailing extension when there is one. A name made only of dots
// becomes Placeholder.
func Sanitize(name string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	s := strings.Join(strings.Fields(name), "_")
	if s == "" {
		return Placeholder
	}

	s = strings.Map(func(r rune) rune {
		if allowed(r) {
			return r
		}
		return '_'
	}, s)

	if len(s) > maxLength {
		s = truncate(s, maxLength)
	}
	// "." and ".." name the directory itself or its parent.
	if strings.Trim(s, ".") == "" {
		return Placeholder
	}
	return s
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '.', r == '-':
		return true
	}
	return false
}

// truncate cuts s to maxLength bytes. s is pure ASCII at this point.
func truncate(s string, maxLength int) string {
	dot := strings.LastIndexByte(s, '.')
	if dot > 0 && dot < len(s)-1 {
		ext := s[dot+1:]
		if keep := maxLength - len(ext) - 1; keep > 0 {
			return s[:keep] + "." + ext
		}
	}
	return s[:maxLength]
}
