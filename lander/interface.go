package lander

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sokinpui/lander/cli"
	"github.com/sokinpui/lander/internal/config"
	"github.com/sokinpui/lander/internal/state"
)

// Config for using lander as a library.
type Config struct {
	// Root the diff paths are relative to. Defaults to the working directory.
	Root string
	// Only apply diffs for these extensions (e.g., 'py', '.js').
	Extensions []string
	// Editor host: "none" (default), "auto" or "nvim".
	Editor string
	// Git binary. Defaults to "git".
	Git string
}

// Apply extracts the diffs from content and applies them. It returns a
// summary of the operations in a map.
func Apply(ctx context.Context, content string, cfg Config) (map[string][]string, error) {
	cliCfg, err := cfg.cliConfig()
	if err != nil {
		return nil, err
	}

	app, err := New(cliCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lander app: %w", err)
	}
	defer app.Close()

	summary, err := app.ApplyContent(ctx, content)
	if err != nil {
		return nil, err
	}

	result := map[string][]string{
		"Created":  summary.Created,
		"Modified": summary.Modified,
		"Deleted":  summary.Deleted,
		"Failed":   summary.Failed,
	}
	return result, nil
}

func (c Config) cliConfig() (*cli.Config, error) {
	root := c.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root %q: %w", c.Root, err)
	}

	settings := config.Settings{
		Root:         root,
		Git:          c.Git,
		Editor:       c.Editor,
		Format:       true,
		LogLevel:     "info",
		HistoryLimit: state.DefaultLimit,
	}
	if settings.Git == "" {
		settings.Git = "git"
	}
	if settings.Editor == "" {
		settings.Editor = "none"
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &cli.Config{
		Settings:    settings,
		NoAnimation: true,
		Extensions:  cli.NormalizeExtensions(c.Extensions),
	}, nil
}
