package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sokinpui/lander/model"
)

func TestExtractCodeBlocks(t *testing.T) {
	src := "Update `main.go`:\n\n```go\npackage main\n```\n\nand\n\n```diff\n--- a/x\n+++ b/x\n```\n"

	blocks, err := ExtractCodeBlocks([]byte(src))
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	require.Equal(t, CodeBlock{Hint: "Update `main.go`:", Lang: "go", Content: "package main\n"}, blocks[0])
	require.Equal(t, "diff", blocks[1].Lang)
	require.True(t, blocks[1].IsDiff())
	require.False(t, blocks[0].IsDiff())
}

func TestIsDiff(t *testing.T) {
	tests := []struct {
		block CodeBlock
		want  bool
	}{
		{block: CodeBlock{Lang: "diff"}, want: true},
		{block: CodeBlock{Lang: "PATCH"}, want: true},
		{block: CodeBlock{Content: "diff --git a/x b/x\n"}, want: true},
		{block: CodeBlock{Content: "\n--- a/x\n+++ b/x\n"}, want: true},
		{block: CodeBlock{Content: "just text\n"}, want: false},
		{block: CodeBlock{Lang: "go", Content: "--- a/x\n"}, want: false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.block.IsDiff(), "%+v", tt.block)
	}
}

func TestExtractDiffBlocks(t *testing.T) {
	first := "--- a/a.go\n+++ b/a.go\n@@ -1 +1 @@\n-a\n+b\n"
	second := "--- /dev/null\n+++ b/docs/b.md\n@@ -0,0 +1 @@\n+hi\n"

	tests := []struct {
		name    string
		content string
		want    []model.DiffBlock
		wantErr error
	}{
		{
			name:    "fenced blocks",
			content: "Here you go:\n\n```diff\n" + first + "```\n\nAnd a new doc:\n\n```diff\n" + second + "```\n",
			want: []model.DiffBlock{
				{FilePath: "a.go", RawContent: first},
				{FilePath: "docs/b.md", RawContent: second},
			},
		},
		{
			name:    "raw diff",
			content: first,
			want:    []model.DiffBlock{{FilePath: "a.go", RawContent: first}},
		},
		{
			name:    "crlf input",
			content: "--- a/a.go\r\n+++ b/a.go\r\n@@ -1 +1 @@\r\n-a\r\n+b\r\n",
			want:    []model.DiffBlock{{FilePath: "a.go", RawContent: first}},
		},
		{
			name:    "one fence with two files",
			content: "```diff\n" + first + second + "```\n",
			want: []model.DiffBlock{
				{FilePath: "a.go", RawContent: first},
				{FilePath: "docs/b.md", RawContent: second},
			},
		},
		{
			name:    "raw diff after prose",
			content: "Apply this:\n" + first + second,
			want: []model.DiffBlock{
				{FilePath: "a.go", RawContent: first},
				{FilePath: "docs/b.md", RawContent: second},
			},
		},
		{
			name:    "nothing",
			content: "no patch today\n",
			wantErr: ErrNoDiff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractDiffBlocks(tt.content)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFilterByExtensionAndJoin(t *testing.T) {
	blocks := []model.DiffBlock{
		{FilePath: "a.go", RawContent: "A\n"},
		{FilePath: "b.md", RawContent: "B"},
	}
	require.Equal(t, blocks, FilterByExtension(blocks, nil))
	require.Equal(t, blocks[1:], FilterByExtension(blocks, []string{".md"}))
	require.Equal(t, "A\nB\n", Join(blocks))
}

func TestFilterByExtensionSplitsFences(t *testing.T) {
	goDiff := "--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n-a\n+b\n"
	mdDiff := "--- a/README.md\n+++ b/README.md\n@@ -1 +1 @@\n-x\n+y\n"

	blocks, err := ExtractDiffBlocks("```diff\n" + goDiff + mdDiff + "```\n")
	require.NoError(t, err)

	require.Equal(t, goDiff, Join(FilterByExtension(blocks, []string{".go"})))
	require.Equal(t, mdDiff, Join(FilterByExtension(blocks, []string{".md"})))
	require.Empty(t, FilterByExtension(blocks, []string{".py"}))
}
