package fuzzy

import (
	"strings"
	"unicode"
)

// BlankLine is the normalized form of every line that is empty after
// trimming. NUL bytes cannot survive in text that reaches the engine, so the
// token never collides with real content.
const BlankLine = "\x00blank\x00"

// Normalize reduces a line to its comparison key: line terminators and all
// other whitespace removed, letters lowercased.
func Normalize(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	if b.Len() == 0 {
		return BlankLine
	}
	return b.String()
}

// NormalizeLines normalizes every line of lines.
func NormalizeLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = Normalize(l)
	}
	return out
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
