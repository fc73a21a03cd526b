package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/sokinpui/lander/cli"
	"github.com/sokinpui/lander/internal/tui"
	"github.com/sokinpui/lander/internal/ui"
	"github.com/sokinpui/lander/lander"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := cli.ParseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	app, err := lander.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		return 1
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Flags that print to stdout and should not run the TUI.
	if cfg.OutputDiffFix {
		if _, err := app.Execute(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if cfg.NoAnimation {
		return runPlain(ctx, app, title(cfg))
	}

	model := tui.New(ctx, app)
	p := tea.NewProgram(model)
	tui.SetProgram(app, p)
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		return 1
	}
	if m, ok := final.(tui.Model); ok && m.Err() != nil {
		return 1
	}
	return 0
}

func runPlain(ctx context.Context, app *lander.App, title string) int {
	var bar *ui.ProgressBar
	app.SetProgressCallback(func(current, total int) {
		if bar == nil {
			bar = ui.NewProgressBar(total, "Finalizing")
			bar.Start()
		}
		bar.Set(current)
	})

	summary, err := app.Execute(ctx)
	if bar != nil {
		bar.Finish()
	}
	ui.PrintSummary(title, summary)
	if err != nil {
		var detailed *lander.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		ui.Error("Error: %v", err)
		return 1
	}
	return 0
}

func title(cfg *cli.Config) string {
	switch {
	case cfg.Undo:
		return "Undo Summary"
	case cfg.Accept:
		return "Accept Summary"
	default:
		return "Apply Summary"
	}
}
