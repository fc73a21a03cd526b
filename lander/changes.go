package lander

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sokinpui/lander/internal/diffparse"
	"github.com/sokinpui/lander/internal/fs"
	"github.com/sokinpui/lander/model"
)

// FileChange is the difference between a snapshot and the file on disk.
type FileChange struct {
	Path    string
	Before  string
	After   string
	Created bool
	Deleted bool
}

// Changes compares every snapshot in states with the current disk content
// and returns the files that differ.
func Changes(states []model.OriginalFileState) []FileChange {
	var changes []FileChange
	for _, st := range states {
		after, exists, err := fs.ReadFile(st.FilePath)
		if err != nil {
			continue
		}
		c := FileChange{Path: st.FilePath, Before: st.Content, After: after}
		switch {
		case st.IsNew && exists:
			c.Created = true
		case !st.IsNew && !exists:
			c.Deleted = true
		case !exists || after == st.Content:
			continue
		}
		changes = append(changes, c)
	}
	return changes
}

// Stats counts the lines added and removed between Before and After.
func (c FileChange) Stats() (added, removed int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(c.Before, c.After)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")
		if d.Text != "" && !strings.HasSuffix(d.Text, "\n") {
			n++
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

// Render returns a unified diff of the change with paths relative to root.
func (c FileChange) Render(root string) (string, error) {
	rel := fs.RelTo(root, c.Path)
	from, to := "a/"+rel, "b/"+rel
	if c.Created {
		from = diffparse.NullDevice
	}
	if c.Deleted {
		to = diffparse.NullDevice
	}

	ud := difflib.UnifiedDiff{
		A:        splitLines(c.Before),
		B:        splitLines(c.After),
		FromFile: from,
		ToFile:   to,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", rel, err)
	}
	return text, nil
}

// RenderChanges renders every change in order.
func RenderChanges(root string, changes []FileChange) (string, error) {
	var b strings.Builder
	for _, c := range changes {
		text, err := c.Render(root)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if last := len(lines) - 1; lines[last] == "" {
		lines = lines[:last]
	} else {
		lines[last] += "\n"
	}
	return lines
}
