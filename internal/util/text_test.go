package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCondenseSpaces(t *testing.T) {
	assert.Equal(t, "a b c", CondenseSpaces("a \t b\n\nc"))
}

func TestTruncateShorten(t *testing.T) {
	assert.Equal(t, "", TruncateShorten("abc", 0))
	assert.Equal(t, "abc", TruncateShorten("abc", 3))
	assert.Equal(t, "ab…", TruncateShorten("abcd", 3))
	assert.Equal(t, "hé…", TruncateShorten("héllo", 3))
}

func TestTrimLines(t *testing.T) {
	assert.Nil(t, TrimLines(""))
	assert.Equal(t, []string{"one", "two"}, TrimLines("  one\r\n\n two  \n"))
}

func TestTrimTo(t *testing.T) {
	s := "line one\nline two\nline three\n"

	assert.Equal(t, s, TrimTo(s, 0))
	assert.Equal(t, s, TrimTo(s, len(s)))

	got := TrimTo(s, 12)
	assert.Equal(t, "line one\n"+TruncationMarker, got)
}

func TestTrimToKeepsWholeRunes(t *testing.T) {
	got := TrimTo("日本語のテキスト", 5)
	assert.True(t, utf8.ValidString(got), "%q", got)
	assert.Equal(t, "日\n"+TruncationMarker, got)

	got = TrimTo("日本語", 6)
	assert.Equal(t, "日本\n"+TruncationMarker, got)
}

func TestLowerFirst(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		"Add parser":        "add parser",
		"API client retry":  "API client retry",
		"JSON output":       "JSON output",
		"A small thing":     "a small thing",
		"Émettre un signal": "émettre un signal",
	}
	for in, want := range tests {
		assert.Equal(t, want, LowerFirst(in), in)
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap("   ", 10))
	assert.Equal(t, []string{"a b c"}, Wrap("a  b c", 0))

	lines := Wrap("the quick brown fox jumps over the lazy dog", 10)
	assert.Equal(t, []string{"the quick", "brown fox", "jumps over", "the lazy", "dog"}, lines)
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), 10)
	}

	long := strings.Repeat("x", 15)
	assert.Equal(t, []string{"a", long, "b"}, Wrap("a "+long+" b", 10))
}
