package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/sokinpui/lander/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
	PromptColor  = color.New(color.FgMagenta)
)

// Out receives all console output.
var Out io.Writer = os.Stderr

func Header(format string, a ...any) {
	HeaderColor.Fprintf(Out, format+"\n", a...)
}

func Info(format string, a ...any) {
	InfoColor.Fprintf(Out, format+"\n", a...)
}

func Success(format string, a ...any) {
	SuccessColor.Fprintf(Out, format+"\n", a...)
}

func Warning(format string, a ...any) {
	WarningColor.Fprintf(Out, format+"\n", a...)
}

func Error(format string, a ...any) {
	ErrorColor.Fprintf(Out, format+"\n", a...)
}

func Path(format string, a ...any) {
	PathColor.Fprintf(Out, "  "+format+"\n", a...)
}

func Prompt(format string, a ...any) string {
	return PromptColor.Sprintf(format, a...)
}

// --- Summaries ---

// PrintSummary prints the outcome of an apply, undo or accept.
func PrintSummary(title string, s model.Summary) {
	Header("\n--- %s ---", title)

	if s.Message != "" {
		Info("%s", s.Message)
	}
	if len(s.Created) == 0 && len(s.Modified) == 0 && len(s.Deleted) == 0 && len(s.Failed) == 0 {
		if s.Message == "" {
			Info("No files were updated.")
		}
		return
	}

	printList(Success, "Created %d new file(s):", s.Created)
	printList(Success, "Modified %d file(s):", s.Modified)
	printList(Warning, "Deleted %d file(s):", s.Deleted)
	printList(Error, "Failed to process %d file(s):", s.Failed)
	PrintDiagnostics(s.Diagnostics)

	if s.Preview != "" {
		fmt.Fprintln(Out)
		fmt.Fprint(Out, s.Preview)
	}
}

// PrintDiagnostics lists the stage failures that preceded the final result.
func PrintDiagnostics(diags []model.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	Warning("%d stage failure(s) before the final result:", len(diags))
	for _, d := range diags {
		fmt.Fprintf(Out, "  - %s\n", firstLine(d.String()))
	}
}

func printList(printer func(string, ...any), format string, files []string) {
	if len(files) == 0 {
		return
	}
	printer(format, len(files))
	for _, f := range files {
		fmt.Fprintf(Out, "  - %s\n", f)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// --- Progress Bar ---

type ProgressBar struct {
	total   int
	prefix  string
	current int
}

func NewProgressBar(total int, prefix string) *ProgressBar {
	return &ProgressBar{total: total, prefix: prefix}
}

func (p *ProgressBar) Start() {
	p.draw()
}

// Set moves the bar to current.
func (p *ProgressBar) Set(current int) {
	p.current = min(current, p.total)
	p.draw()
}

func (p *ProgressBar) Increment() {
	p.Set(p.current + 1)
}

func (p *ProgressBar) Finish() {
	if p.total > 0 {
		fmt.Fprintln(Out)
	}
}

func (p *ProgressBar) draw() {
	if p.total == 0 {
		return
	}
	const barLength = 40
	percent := float64(p.current) / float64(p.total)
	filledLength := int(percent * barLength)
	bar := strings.Repeat("█", filledLength) + strings.Repeat("-", barLength-filledLength)

	percentStr := fmt.Sprintf("%.1f%%", percent*100)
	countStr := fmt.Sprintf("[%d/%d]", p.current, p.total)

	fmt.Fprintf(Out, "\r%s |%s| %s %s", p.prefix, bar, countStr, percentStr)
}
