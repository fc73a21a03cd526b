// Package diffparse reads unified diff text, as produced by git or by a
// language model imitating it, into file sections and hunks.
//
// The parser is lenient on purpose: hunk line counts are recorded but never
// trusted, hunk headers without numbers are accepted, and blank lines inside a
// hunk are treated as blank context lines.
package diffparse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// NullDevice is the path token for the missing side of a creation or deletion.
const NullDevice = "/dev/null"

// ErrNoFileDiffs is returned by Parse when the text has no file headers.
var ErrNoFileDiffs = errors.New("no file sections found in diff")

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// LineKind tags a hunk line.
type LineKind int

const (
	Context LineKind = iota
	Added
	Removed
)

func (k LineKind) prefix() string {
	switch k {
	case Added:
		return "+"
	case Removed:
		return "-"
	default:
		return " "
	}
}

// Line is a single hunk line without its prefix.
type Line struct {
	Kind LineKind
	Text string
}

// String renders the line back into diff form.
func (l Line) String() string {
	return l.Kind.prefix() + l.Text
}

// Hunk is one "@@ ... @@" region.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
	// MissingNewline is set when the new side ends without a trailing newline.
	MissingNewline bool
}

// FileDiff is one file section of a patch document.
type FileDiff struct {
	OldPath   string
	NewPath   string
	IsNew     bool
	IsDeleted bool
	IsRenamed bool
	Hunks     []Hunk
	// Raw is the section text. For deletions it stops before the null-device
	// marker line.
	Raw string
	// Text is the complete section text, suitable for git apply.
	Text string
}

// Target returns the path the section writes to: the new path, or the old
// path when the new side is the null device.
func (f FileDiff) Target() string {
	if f.NewPath == "" || f.NewPath == NullDevice {
		return f.OldPath
	}
	return f.NewPath
}

// NewContent joins the added lines of every hunk. It is the full content of a
// file created by this section.
func (f FileDiff) NewContent() string {
	var b strings.Builder
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if l.Kind == Added {
				b.WriteString(l.Text)
				b.WriteByte('\n')
			}
		}
	}
	content := b.String()
	if n := len(f.Hunks); n > 0 && f.Hunks[n-1].MissingNewline {
		content = strings.TrimSuffix(content, "\n")
	}
	return content
}

// ExtractFilePaths returns the target paths named by the "--- a/…" and
// "+++ b/…" header pairs of diff, in order of first appearance. The new path
// wins unless it is the null device, in which case the old path is used.
// The result is empty when diff has no usable header pair. Header-like lines
// inside a hunk that still expects lines are hunk content, not headers.
func ExtractFilePaths(diff string) []string {
	_, headers := parse(diff)
	seen := make(map[string]struct{})
	var paths []string

	for _, h := range headers {
		var p string
		switch {
		case h.newPath != "" && h.newPath != NullDevice:
			p = h.newPath
		case h.oldPath != "" && h.oldPath != NullDevice:
			p = h.oldPath
		default:
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	return paths
}

// Parse splits diff into file sections. A section starts at a "diff --git"
// line, or at a "---"/"+++" header pair when no "diff --git" line introduced
// it.
func Parse(diff string) ([]FileDiff, error) {
	files, _ := parse(diff)
	if len(files) == 0 {
		return nil, ErrNoFileDiffs
	}
	return files, nil
}

type headerPair struct {
	oldPath, newPath string
}

// parse returns the file sections of diff and every "---"/"+++" pair that
// was read as a header.
//
// A hunk whose header declares line counts stays open until those counts
// are used up: within it an unprefixed line is a context line that lost its
// leading space, and "---"/"+++" lines are removed and added lines. Once the
// counts are used up, or when the header had none, an unprefixed line still
// counts as context while more changed lines follow it; otherwise it is
// prose and ends the hunk.
func parse(diff string) ([]FileDiff, []headerPair) {
	lines := splitLines(diff)

	var (
		files        []FileDiff
		headers      []headerPair
		cur          *FileDiff
		hunk         *Hunk
		start        int
		headerSeen   bool
		trailingRaws int

		declared         bool
		oldLeft, newLeft int
	)

	pending := func() bool {
		return hunk != nil && declared && (oldLeft > 0 || newLeft > 0)
	}
	appendLine := func(l Line) {
		hunk.Lines = append(hunk.Lines, l)
		switch l.Kind {
		case Context:
			oldLeft--
			newLeft--
		case Removed:
			oldLeft--
		case Added:
			newLeft--
		}
	}
	flushHunk := func() {
		if hunk == nil {
			return
		}
		// Empty lines after the last real hunk line are separators, not blank
		// context.
		hunk.Lines = hunk.Lines[:len(hunk.Lines)-trailingRaws]
		cur.Hunks = append(cur.Hunks, *hunk)
		hunk = nil
		trailingRaws = 0
		declared = false
	}
	flushFile := func(end int) {
		if cur == nil {
			return
		}
		flushHunk()
		finalize(cur, lines[start:end])
		files = append(files, *cur)
		cur = nil
		headerSeen = false
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		switch {
		case strings.HasPrefix(line, "diff --git "):
			flushFile(i)
			cur = &FileDiff{}
			start = i
			cur.OldPath, cur.NewPath = parseGitHeader(line)

		case isHeaderPair(lines, i) && (!pending() || isHunkHeader(lines, i+2)):
			if cur == nil || headerSeen || hunk != nil || len(cur.Hunks) > 0 {
				flushFile(i)
				cur = &FileDiff{}
				start = i
			}
			cur.OldPath = parsePath(line[4:])
			cur.NewPath = parsePath(lines[i+1][4:])
			headers = append(headers, headerPair{oldPath: cur.OldPath, newPath: cur.NewPath})
			headerSeen = true
			i++

		case cur == nil:
			// Preamble before the first section.

		case strings.HasPrefix(line, "@@"):
			flushHunk()
			h, ok := parseHunkHeader(line)
			hunk = &h
			declared = ok
			oldLeft, newLeft = h.OldCount, h.NewCount

		case hunk == nil:
			parseExtendedHeader(cur, line)

		case strings.HasPrefix(line, `\`):
			if n := len(hunk.Lines); n > 0 && hunk.Lines[n-1].Kind != Removed {
				hunk.MissingNewline = true
			}

		case line == "":
			appendLine(Line{Kind: Context})
			trailingRaws++

		case line[0] == ' ' || line[0] == '+' || line[0] == '-':
			appendLine(Line{Kind: kindOf(line[0]), Text: line[1:]})
			trailingRaws = 0

		case pending() || changesFollow(lines, i+1):
			appendLine(Line{Kind: Context, Text: line})
			trailingRaws = 0

		default:
			// Prose after a hunk ends it.
			flushHunk()
		}
	}
	flushFile(len(lines))
	return files, headers
}

// changesFollow reports whether an added or removed line comes before the
// next hunk or section boundary.
func changesFollow(lines []string, from int) bool {
	for j := from; j < len(lines); j++ {
		l := lines[j]
		switch {
		case strings.HasPrefix(l, "diff --git "), strings.HasPrefix(l, "@@"), isHeaderPair(lines, j):
			return false
		case l != "" && (l[0] == '+' || l[0] == '-'):
			return true
		}
	}
	return false
}

func isHunkHeader(lines []string, i int) bool {
	return i < len(lines) && strings.HasPrefix(lines[i], "@@")
}

func finalize(f *FileDiff, section []string) {
	f.Text = joinSection(section)
	if f.OldPath == NullDevice {
		f.IsNew = true
	}
	if f.NewPath == NullDevice {
		f.IsDeleted = true
	}
	if !f.IsNew && !f.IsDeleted && f.OldPath != "" && f.NewPath != "" && f.OldPath != f.NewPath {
		f.IsRenamed = true
	}

	if f.IsDeleted {
		for i, l := range section {
			if strings.HasPrefix(l, "+++ ") && parsePath(l[4:]) == NullDevice {
				section = section[:i]
				break
			}
		}
	}
	f.Raw = joinSection(section)
}

func joinSection(section []string) string {
	for len(section) > 0 && strings.TrimSpace(section[len(section)-1]) == "" {
		section = section[:len(section)-1]
	}
	if len(section) == 0 {
		return ""
	}
	return strings.Join(section, "\n") + "\n"
}

func parseExtendedHeader(f *FileDiff, line string) {
	switch {
	case strings.HasPrefix(line, "new file mode"):
		f.IsNew = true
		f.OldPath = NullDevice
	case strings.HasPrefix(line, "deleted file mode"):
		f.IsDeleted = true
		f.NewPath = NullDevice
	case strings.HasPrefix(line, "rename from "):
		f.OldPath = strings.TrimSpace(strings.TrimPrefix(line, "rename from "))
	case strings.HasPrefix(line, "rename to "):
		f.NewPath = strings.TrimSpace(strings.TrimPrefix(line, "rename to "))
	}
}

// parseHunkHeader reads "@@ -a[,b] +c[,d] @@". ok is false for an "@@" line
// with no usable numbers; content matching does not need them.
func parseHunkHeader(line string) (h Hunk, ok bool) {
	m := hunkHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, false
	}
	return Hunk{
		OldStart: atoi(m[1], 0),
		OldCount: atoi(m[2], 1),
		NewStart: atoi(m[3], 0),
		NewCount: atoi(m[4], 1),
	}, true
}

func parseGitHeader(line string) (string, string) {
	parts := strings.Fields(strings.TrimPrefix(line, "diff --git "))
	if len(parts) < 2 {
		return "", ""
	}
	return stripPrefix(parts[0]), stripPrefix(parts[1])
}

func parsePath(raw string) string {
	if i := strings.IndexByte(raw, '\t'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	if raw == NullDevice {
		return raw
	}
	return stripPrefix(raw)
}

func stripPrefix(p string) string {
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		return p[2:]
	}
	return p
}

func isHeaderPair(lines []string, i int) bool {
	return i+1 < len(lines) &&
		strings.HasPrefix(lines[i], "--- ") &&
		strings.HasPrefix(lines[i+1], "+++ ")
}

func kindOf(prefix byte) LineKind {
	switch prefix {
	case '+':
		return Added
	case '-':
		return Removed
	default:
		return Context
	}
}

func atoi(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
