package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/sokinpui/lander/internal/ui"
)

// Provider determines and retrieves the patch input.
type Provider struct {
	// Path is a file to read instead of stdin or the clipboard. "-" means
	// stdin.
	Path string

	stdin     io.Reader
	piped     func() bool
	clipboard func() (string, error)
	quiet     bool
}

// New creates a Provider reading path, or stdin when piped, or the
// clipboard.
func New(path string) *Provider {
	return &Provider{
		Path:      path,
		stdin:     os.Stdin,
		piped:     stdinPiped,
		clipboard: clipboard.ReadAll,
	}
}

// Quiet suppresses the "reading from" headers.
func (p *Provider) Quiet() *Provider {
	p.quiet = true
	return p
}

// GetContent retrieves content from the file argument, stdin (if piped) or
// the clipboard. An empty clipboard yields "" and no error.
func (p *Provider) GetContent() (string, error) {
	switch {
	case p.Path != "" && p.Path != "-":
		p.header("--- Reading from %s ---", p.Path)
		content, err := os.ReadFile(p.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", p.Path, err)
		}
		return string(content), nil

	case p.Path == "-" || p.piped():
		p.header("--- Reading from stdin ---")
		content, err := io.ReadAll(p.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(content), nil
	}

	p.header("--- Reading from clipboard ---")
	content, err := p.clipboard()
	if err != nil {
		return "", fmt.Errorf("failed to read from clipboard: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		if !p.quiet {
			ui.Warning("Clipboard is empty. Nothing to process.")
		}
		return "", nil
	}
	return content, nil
}

func (p *Provider) header(format string, a ...any) {
	if !p.quiet {
		ui.Header(format, a...)
	}
}

func stdinPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
