package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TruncationMarker is appended to diffs cut down to the byte budget.
const TruncationMarker = "…[diff truncated]"

// CondenseSpaces joins the words of s with single spaces, dropping leading
// and trailing whitespace.
func CondenseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateShorten keeps at most n runes of s; the last one becomes "…" when cut.
func TruncateShorten(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n-1 && utf8.RuneCountInString(s[i:]) > 1 {
			return s[:i] + "…"
		}
		count++
	}
	return s
}

// TrimLines returns the non-blank lines of s, each trimmed.
func TrimLines(s string) []string {
	var out []string
	for _, line := range strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// TrimTo cuts s to max bytes on the last complete line and appends
// TruncationMarker. Zero or less means no limit.
func TrimTo(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	if nl := strings.LastIndexByte(cut, '\n'); nl > 0 {
		cut = cut[:nl]
	} else {
		// no line break to cut on; keep whole runes
		for len(cut) > 0 && !utf8.RuneStart(s[len(cut)]) {
			cut = cut[:len(cut)-1]
		}
	}
	return cut + "\n" + TruncationMarker
}

// LowerFirst lower-cases the first rune unless the first word looks like an
// acronym or identifier (e.g. "API", "JSON").
func LowerFirst(s string) string {
	if s == "" {
		return s
	}
	word := s
	if idx := strings.IndexByte(s, ' '); idx > 0 {
		word = s[:idx]
	}
	if utf8.RuneCountInString(word) > 1 && strings.ToUpper(word) == word {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

// Wrap breaks s into lines no wider than width runes, splitting on spaces.
// Words longer than width are kept whole on their own line.
func Wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var (
		lines []string
		cur   strings.Builder
		n     int
	)
	for _, w := range words {
		wl := utf8.RuneCountInString(w)
		if n > 0 && n+1+wl > width {
			lines = append(lines, cur.String())
			cur.Reset()
			n = 0
		}
		if n > 0 {
			cur.WriteByte(' ')
			n++
		}
		cur.WriteString(w)
		n += wl
	}
	if n > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
