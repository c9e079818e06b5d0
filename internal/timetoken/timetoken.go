// Package timetoken finds clock times in free text and normalizes them to 24-hour HH:MM.
package timetoken

import (
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"
)

var tokenRe = regexp.MustCompile(`(?i)([01]?\d|2[0-3]):([0-5]\d)(?:\s?(am|pm)\b)?`)

// All yields the normalized time tokens of text in order of appearance.
func All(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if text == "" {
			return
		}
		for _, m := range tokenRe.FindAllStringSubmatch(text, -1) {
			t, ok := normalizeParts(m[1], m[2], m[3])
			if !ok {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Extract collects All(text) into a slice. The result is never nil.
func Extract(text string) []string {
	out := make([]string, 0)
	for t := range All(text) {
		out = append(out, t)
	}
	return out
}

// FromAny accepts loosely typed input, such as values decoded from JSON or returned by a page
// script. Anything that is not a string yields no tokens.
func FromAny(v any) []string {
	switch s := v.(type) {
	case string:
		return Extract(s)
	case *string:
		if s == nil {
			return []string{}
		}
		return Extract(*s)
	case []byte:
		return Extract(string(s))
	default:
		return []string{}
	}
}

// Normalize converts a single token such as "5:00 pm" to "17:00".
func Normalize(raw string) (string, bool) {
	m := tokenRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	return normalizeParts(m[1], m[2], m[3])
}

// First returns the first normalized token in text.
func First(text string) (string, bool) {
	for t := range All(text) {
		return t, true
	}
	return "", false
}

// IsToken reports whether s is exactly one time token, optionally suffixed with am/pm.
func IsToken(s string) bool {
	loc := tokenRe.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

func normalizeParts(hour, minute, suffix string) (string, bool) {
	h, err := strconv.Atoi(hour)
	if err != nil || h > 23 {
		return "", false
	}
	// a 24-hour value with a stray suffix ("13:00pm") is kept as written
	if h <= 12 {
		switch strings.ToLower(suffix) {
		case "pm":
			if h != 12 {
				h += 12
			}
		case "am":
			if h == 12 {
				h = 0
			}
		}
	}
	return fmt.Sprintf("%02d:%s", h, minute), true
}
