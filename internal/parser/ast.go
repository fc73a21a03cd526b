package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is a fenced code block found in markdown content.
type CodeBlock struct {
	// Hint is the paragraph right before the block, often naming the file.
	Hint    string
	Lang    string
	Content string
}

// IsDiff reports whether the block holds a unified diff: either it is
// tagged diff or patch, or it is untagged and starts like one.
func (b CodeBlock) IsDiff() bool {
	switch strings.ToLower(b.Lang) {
	case "diff", "patch", "udiff":
		return true
	case "":
		trimmed := strings.TrimLeft(b.Content, " \t\r\n")
		return strings.HasPrefix(trimmed, "diff --git ") || strings.HasPrefix(trimmed, "--- ")
	default:
		return false
	}
}

// ExtractCodeBlocks walks the markdown AST of source and returns every
// fenced code block in document order.
func ExtractCodeBlocks(source []byte) ([]CodeBlock, error) {
	var blocks []CodeBlock
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		block := CodeBlock{Lang: string(fenced.Language(source))}

		var content bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		block.Content = content.String()

		if p, ok := fenced.PreviousSibling().(*ast.Paragraph); ok {
			var hint bytes.Buffer
			plines := p.Lines()
			for i := 0; i < plines.Len(); i++ {
				line := plines.At(i)
				hint.Write(line.Value(source))
			}
			block.Hint = strings.TrimSpace(hint.String())
		}

		blocks = append(blocks, block)
		return ast.WalkSkipChildren, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}
	return blocks, nil
}
