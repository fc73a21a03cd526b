package fuzzy

import (
	"github.com/sokinpui/lander/internal/diffparse"
)

// ResolutionKind says where a block landed in the target file.
type ResolutionKind int

const (
	NotFound ResolutionKind = iota
	Located
	InsertAtStart
)

func (k ResolutionKind) String() string {
	switch k {
	case Located:
		return "located"
	case InsertAtStart:
		return "insert-at-start"
	default:
		return "not-found"
	}
}

// Resolution is the located position of a block. Index is meaningful only
// for Located.
type Resolution struct {
	Kind  ResolutionKind
	Index int
}

// LocatedAt returns a Located resolution at index.
func LocatedAt(index int) Resolution {
	return Resolution{Kind: Located, Index: index}
}

// Start returns the first file line the block replaces, and false when the
// block was not found.
func (r Resolution) Start() (int, bool) {
	switch r.Kind {
	case Located:
		return r.Index, true
	case InsertAtStart:
		return 0, true
	default:
		return 0, false
	}
}

// Block pairs the text a hunk expects to find with the text replacing it.
type Block struct {
	// Search holds normalized lines; SearchText the same lines as written.
	Search     []string
	SearchText []string
	// Replace holds literal lines for the output.
	Replace []string
	// origin maps each replace line that came from a context line to its
	// search index, and every added line to -1.
	origin []int

	// Hunk is the index of the hunk the block came from and HunkStart its
	// declared old start line.
	Hunk      int
	HunkStart int

	Resolution Resolution
}

// BuildState is the state of the block builder.
type BuildState int

const (
	// Searching collects removed and context lines.
	Searching BuildState = iota
	// Replacing collects added lines.
	Replacing
)

// Builder turns hunk lines into blocks. A search-side line arriving while
// Replacing closes the current block and opens the next one.
type Builder struct {
	state  BuildState
	cur    *Block
	blocks []Block
}

// State returns the current builder state.
func (b *Builder) State() BuildState {
	return b.state
}

// StartHunk closes any open block and opens one for a new hunk.
func (b *Builder) StartHunk(index int, h diffparse.Hunk) {
	b.open(index, h.OldStart)
}

// Feed consumes one hunk line.
func (b *Builder) Feed(l diffparse.Line) {
	if b.cur == nil {
		b.open(0, 0)
	}
	switch l.Kind {
	case diffparse.Added:
		b.state = Replacing
		b.cur.Replace = append(b.cur.Replace, l.Text)
		b.cur.origin = append(b.cur.origin, -1)
	case diffparse.Removed:
		b.reopenIfReplacing()
		b.appendSearch(l.Text)
	default:
		b.reopenIfReplacing()
		b.appendSearch(l.Text)
		b.cur.Replace = append(b.cur.Replace, l.Text)
		b.cur.origin = append(b.cur.origin, len(b.cur.Search)-1)
	}
}

// Blocks closes the open block and returns everything built so far.
func (b *Builder) Blocks() []Block {
	b.close()
	return b.blocks
}

func (b *Builder) reopenIfReplacing() {
	if b.state == Replacing {
		b.open(b.cur.Hunk, b.cur.HunkStart)
	}
}

func (b *Builder) appendSearch(text string) {
	b.cur.Search = append(b.cur.Search, Normalize(text))
	b.cur.SearchText = append(b.cur.SearchText, text)
}

func (b *Builder) open(hunk, hunkStart int) {
	b.close()
	b.cur = &Block{Hunk: hunk, HunkStart: hunkStart}
	b.state = Searching
}

func (b *Builder) close() {
	if b.cur == nil {
		return
	}
	blk := *b.cur
	b.cur = nil
	dropTrailingBlank(&blk)
	if len(blk.Search) == 0 && len(blk.Replace) == 0 {
		return
	}
	b.blocks = append(b.blocks, blk)
}

// dropTrailingBlank removes a final blank search line that has no blank
// counterpart at the end of the replacement. Models often append one. A
// blank context line is kept wherever its replace copy sits.
func dropTrailingBlank(blk *Block) {
	n := len(blk.Search)
	if n == 0 || blk.Search[n-1] != BlankLine {
		return
	}
	if m := len(blk.Replace); m > 0 && isBlank(blk.Replace[m-1]) {
		return
	}
	for _, o := range blk.origin {
		if o == n-1 {
			return
		}
	}
	blk.Search = blk.Search[:n-1]
	blk.SearchText = blk.SearchText[:n-1]
}

// BuildBlocks converts hunks into search/replace blocks in file order.
func BuildBlocks(hunks []diffparse.Hunk) []Block {
	var b Builder
	for i, h := range hunks {
		b.StartHunk(i, h)
		for _, l := range h.Lines {
			b.Feed(l)
		}
	}
	return b.Blocks()
}
