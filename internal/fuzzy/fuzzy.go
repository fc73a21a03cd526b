// Package fuzzy applies unified diff hunks by content instead of by line
// number. Each hunk becomes search/replace blocks that are matched against
// the target after whitespace and case normalization.
package fuzzy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sokinpui/lander/internal/diffparse"
)

// BlockNotFoundError is returned when a block's search text does not occur
// in the target file after the previous block's match.
type BlockNotFoundError struct {
	Block  int
	Search []string
}

func (e *BlockNotFoundError) Error() string {
	return fmt.Sprintf("could not find block %d in target:\n%s", e.Block+1, strings.Join(e.Search, "\n"))
}

// Locate resolves every block against the normalized file lines. Blocks are
// searched in order, each one starting where the previous match ended.
// Locate stops at the first block that cannot be found.
func Locate(lines []string, blocks []Block) error {
	cursor := 0
	for i := range blocks {
		b := &blocks[i]
		if len(b.Search) == 0 {
			if cursor == 0 {
				b.Resolution = Resolution{Kind: InsertAtStart}
				continue
			}
			pos := max(cursor, b.HunkStart)
			pos = min(pos, len(lines))
			b.Resolution = LocatedAt(pos)
			cursor = pos
			continue
		}

		idx := find(lines, b.Search, cursor)
		if idx < 0 {
			b.Resolution = Resolution{Kind: NotFound}
			return &BlockNotFoundError{Block: i, Search: b.SearchText}
		}
		b.Resolution = LocatedAt(idx)
		cursor = idx + len(b.Search)
	}
	return nil
}

// find returns the first index >= from where search occurs as a contiguous
// run of lines. Normalized lines carry no newline, so comparing line by line
// equals comparing the newline-joined text.
func find(lines, search []string, from int) int {
	n := len(search)
	for i := from; i+n <= len(lines); i++ {
		match := true
		for j := 0; j < n; j++ {
			if lines[i+j] != search[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// Apply rewrites original according to hunks. The number of trailing
// newlines of original is preserved, and CRLF files stay CRLF.
func Apply(original string, hunks []diffparse.Hunk) (string, error) {
	crlf := strings.Contains(original, "\r\n")
	if crlf {
		original = strings.ReplaceAll(original, "\r\n", "\n")
	}

	body := strings.TrimRight(original, "\n")
	trailing := len(original) - len(body)
	lines := strings.Split(body, "\n")

	blocks := BuildBlocks(hunks)
	if err := Locate(NormalizeLines(lines), blocks); err != nil {
		return "", err
	}

	out := strings.Join(splice(lines, blocks), "\n") + strings.Repeat("\n", trailing)
	if crlf {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return out, nil
}

// splice applies resolved blocks from the bottom of the file up so earlier
// indices stay valid. Blocks sharing a start are applied in reverse input
// order, which keeps their output in input order.
func splice(lines []string, blocks []Block) []string {
	order := make([]int, len(blocks))
	for i := range order {
		order[i] = len(blocks) - 1 - i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, _ := blocks[order[a]].Resolution.Start()
		sb, _ := blocks[order[b]].Resolution.Start()
		return sa > sb
	})

	for _, i := range order {
		b := blocks[i]
		start, ok := b.Resolution.Start()
		if !ok {
			continue
		}
		end := min(start+len(b.Search), len(lines))

		next := make([]string, 0, len(lines)-(end-start)+len(b.Replace))
		next = append(next, lines[:start]...)
		next = append(next, replacement(b, lines[start:end])...)
		next = append(next, lines[end:]...)
		lines = next
	}
	return lines
}

// replacement returns the block's replace lines. Context lines keep the text
// found in the file so whitespace-only drift in the diff is not written back.
func replacement(b Block, matched []string) []string {
	out := make([]string, len(b.Replace))
	for i, text := range b.Replace {
		out[i] = text
		if i < len(b.origin) {
			if j := b.origin[i]; j >= 0 && j < len(b.Search) && j < len(matched) {
				out[i] = matched[j]
			}
		}
	}
	return out
}
