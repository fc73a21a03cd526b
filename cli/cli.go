package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/sokinpui/lander/internal/config"
)

// Config holds all the command-line flag values.
type Config struct {
	config.Settings

	Undo          bool
	Accept        bool
	Force         bool
	OutputDiffFix bool
	ShowDiff      bool
	NoAnimation   bool
	Extensions    []string

	// Input is the optional file argument. Empty means stdin or clipboard.
	Input string
}

// ErrExclusive is returned when more than one history action is requested.
var ErrExclusive = errors.New("--undo, --accept and --output-diff-fix are mutually exclusive")

// ParseFlags defines and parses command-line flags using pflag. Usage and
// parse errors are written to output. pflag.ErrHelp is returned for -h.
func ParseFlags(args []string, output io.Writer) (*Config, error) {
	cfg := &Config{}
	fs := pflag.NewFlagSet("lander", pflag.ContinueOnError)
	fs.SetOutput(output)

	fs.BoolVarP(&cfg.OutputDiffFix, "output-diff-fix", "o", false, "Print the diff with corrected hunk headers instead of applying it.")
	fs.BoolVarP(&cfg.ShowDiff, "show-diff", "d", false, "Show what changed after applying.")
	fs.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable loading spinner and progress updates.")
	fs.StringSliceVarP(&cfg.Extensions, "extension", "e", []string{}, "Only apply diffs for files with these extensions (e.g., 'py', 'js').")

	// Mutually exclusive history group
	fs.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last applied patch.")
	fs.BoolVarP(&cfg.Accept, "accept", "a", false, "Accept every pending patch and clear the undo history.")
	fs.BoolVarP(&cfg.Force, "force", "f", false, "Undo even when files changed after the patch was applied.")

	config.RegisterFlags(fs)

	fs.Usage = func() {
		fmt.Fprintln(output, "Usage: lander [flags] [file]")
		fmt.Fprintln(output, "\nApply a unified diff from a file, stdin (pipe) or the clipboard.")
		fmt.Fprintln(output, "\nExample: pbpaste | lander -e go")
		fmt.Fprintln(output, "\nFlags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("expected at most one input file, got %d", fs.NArg())
	}
	cfg.Input = fs.Arg(0)

	n := 0
	for _, set := range []bool{cfg.Undo, cfg.Accept, cfg.OutputDiffFix} {
		if set {
			n++
		}
	}
	if n > 1 {
		return nil, ErrExclusive
	}

	settings, err := config.Load(fs)
	if err != nil {
		return nil, err
	}
	cfg.Settings = settings

	cfg.Extensions = NormalizeExtensions(cfg.Extensions)
	return cfg, nil
}

// NormalizeExtensions prefixes every extension with a dot.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		if ext == "" {
			continue
		}
		if ext[0] != '.' {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
