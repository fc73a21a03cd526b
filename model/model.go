package model

import "fmt"

// OriginalFileState is the content of a file before a patch touched it.
type OriginalFileState struct {
	FilePath      string `yaml:"file_path"`
	Content       string `yaml:"content"`
	IsNew         bool   `yaml:"is_new"`
	WorkspaceName string `yaml:"workspace_name"`
}

// Stage identifies a step of the apply pipeline.
type Stage int

const (
	StageNone Stage = iota
	StageNewFile
	StageStrict
	StageRecount
	StageFuzzy
)

func (s Stage) String() string {
	switch s {
	case StageNewFile:
		return "new-file"
	case StageStrict:
		return "strict"
	case StageRecount:
		return "recount"
	case StageFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// Diagnostic records an intermediate failure that did not end the apply.
type Diagnostic struct {
	Stage Stage
	File  string
	Err   error
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return fmt.Sprintf("%s: %v", d.Stage, d.Err)
	}
	return fmt.Sprintf("%s: %s: %v", d.Stage, d.File, d.Err)
}

// ApplyResult is the outcome of applying one patch document.
type ApplyResult struct {
	Success        bool
	UsedFallback   bool
	OriginalStates []OriginalFileState

	// Stage is the last stage that wrote files.
	Stage       Stage
	Touched     []string
	Deleted     []string
	Diagnostics []Diagnostic
}

// DiffBlock represents a raw diff block from the source content.
type DiffBlock struct {
	FilePath   string
	RawContent string
}

// Summary holds the results of an operation for display.
type Summary struct {
	Created  []string
	Modified []string
	Deleted  []string
	Failed   []string
	Message  string

	// Diagnostics are the stage failures that preceded a fallback.
	Diagnostics []Diagnostic
	// Preview is a unified rendering of what changed, when requested.
	Preview string
}
