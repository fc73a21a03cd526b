// Package parser pulls unified diffs out of model output, which is usually
// markdown with one or more fenced diff blocks.
package parser

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sokinpui/lander/internal/diffparse"
	"github.com/sokinpui/lander/model"
)

// ErrNoDiff is returned when the content holds no recognizable diff.
var ErrNoDiff = errors.New("no diff found in input")

// ExtractDiffBlocks returns the diffs contained in content, one block per
// file section. Fenced diff blocks are preferred; content without fences is
// taken as one raw diff when it has diff headers.
func ExtractDiffBlocks(content string) ([]model.DiffBlock, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	codeBlocks, err := ExtractCodeBlocks([]byte(content))
	if err != nil {
		return nil, err
	}

	var blocks []model.DiffBlock
	for _, cb := range codeBlocks {
		if !cb.IsDiff() {
			continue
		}
		blocks = append(blocks, splitSections(cb.Content)...)
	}
	if len(blocks) > 0 {
		return blocks, nil
	}

	if blocks := splitSections(content); len(blocks) > 0 {
		return blocks, nil
	}
	return nil, ErrNoDiff
}

// splitSections cuts diff into one block per file it names.
func splitSections(diff string) []model.DiffBlock {
	if len(diffparse.ExtractFilePaths(diff)) == 0 {
		return nil
	}
	files, err := diffparse.Parse(diff)
	if err != nil {
		return nil
	}

	var blocks []model.DiffBlock
	for _, fd := range files {
		target := fd.Target()
		if target == "" || target == diffparse.NullDevice || fd.Text == "" {
			continue
		}
		blocks = append(blocks, model.DiffBlock{FilePath: target, RawContent: fd.Text})
	}
	return blocks
}

// FilterByExtension keeps the blocks whose file has one of exts. An empty
// exts keeps everything.
func FilterByExtension(blocks []model.DiffBlock, exts []string) []model.DiffBlock {
	if len(exts) == 0 {
		return blocks
	}
	var kept []model.DiffBlock
	for _, b := range blocks {
		if slices.Contains(exts, filepath.Ext(b.FilePath)) {
			kept = append(kept, b)
		}
	}
	return kept
}

// Join concatenates blocks into one patch document.
func Join(blocks []model.DiffBlock) string {
	var b strings.Builder
	for _, blk := range blocks {
		b.WriteString(blk.RawContent)
		if !strings.HasSuffix(blk.RawContent, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
