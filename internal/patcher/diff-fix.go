package patcher

import (
	"fmt"
	"strings"

	"github.com/sokinpui/lander/internal/diffparse"
	"github.com/sokinpui/lander/internal/fuzzy"
)

// CorrectDiff rewrites the hunk headers of fd so they match original. Each
// hunk is located by content with the fuzzy engine, and its counts are
// recomputed from its lines. The result is a clean patch git apply accepts
// without --recount.
func CorrectDiff(fd diffparse.FileDiff, original string) (string, error) {
	var b strings.Builder
	writeFileHeader(&b, fd)

	starts, err := hunkStarts(fd, original)
	if err != nil {
		return "", err
	}

	lineDiffOffset := 0
	for i, h := range fd.Hunks {
		added, removed, context := countLines(h)
		oldLines := context + removed
		newLines := context + added

		// An empty side names the line before the change.
		oldStart := starts[i]
		if oldLines > 0 {
			oldStart++
		}
		newStart := starts[i] + lineDiffOffset
		if newLines > 0 {
			newStart++
		}

		b.WriteString(buildHunkHeader(oldStart, oldLines, newStart, newLines))
		for _, l := range h.Lines {
			b.WriteString(l.String())
			b.WriteByte('\n')
		}
		if h.MissingNewline {
			b.WriteString("\\ No newline at end of file\n")
		}
		lineDiffOffset += newLines - oldLines
	}
	return b.String(), nil
}

// hunkStarts returns the zero-based line index where each hunk begins in
// original.
func hunkStarts(fd diffparse.FileDiff, original string) ([]int, error) {
	starts := make([]int, len(fd.Hunks))
	if fd.IsNew {
		return starts, nil
	}

	original = strings.ReplaceAll(original, "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(original, "\n"), "\n")
	blocks := fuzzy.BuildBlocks(fd.Hunks)
	if err := fuzzy.Locate(fuzzy.NormalizeLines(lines), blocks); err != nil {
		return nil, fmt.Errorf("could not find matching block for a hunk in %s: %w", fd.Target(), err)
	}

	// A hunk starts at its first block with search lines. A hunk made only of
	// additions starts where its insertion landed.
	anchored := make([]bool, len(fd.Hunks))
	placed := make([]bool, len(fd.Hunks))
	for _, blk := range blocks {
		start, _ := blk.Resolution.Start()
		switch {
		case anchored[blk.Hunk]:
		case len(blk.Search) > 0:
			starts[blk.Hunk] = start
			anchored[blk.Hunk] = true
			placed[blk.Hunk] = true
		case !placed[blk.Hunk]:
			starts[blk.Hunk] = start
			placed[blk.Hunk] = true
		}
	}
	return starts, nil
}

func writeFileHeader(b *strings.Builder, fd diffparse.FileDiff) {
	oldPath := "a/" + fd.OldPath
	switch {
	case fd.IsNew:
		oldPath = diffparse.NullDevice
	case fd.OldPath == "":
		oldPath = "a/" + fd.Target()
	}
	newPath := "b/" + fd.NewPath
	switch {
	case fd.IsDeleted:
		newPath = diffparse.NullDevice
	case fd.NewPath == "":
		newPath = "b/" + fd.Target()
	}
	fmt.Fprintf(b, "--- %s\n", oldPath)
	fmt.Fprintf(b, "+++ %s\n", newPath)
}

func countLines(h diffparse.Hunk) (added, removed, context int) {
	for _, l := range h.Lines {
		switch l.Kind {
		case diffparse.Added:
			added++
		case diffparse.Removed:
			removed++
		default:
			context++
		}
	}
	return added, removed, context
}

func buildHunkHeader(oldStart, oldLines, newStart, newLines int) string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@\n", oldStart, oldLines, newStart, newLines)
}
