// Package lander ties the patch engine to its inputs, its undo history and
// the editor. It backs both the command and the library API.
package lander

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/sokinpui/lander/cli"
	"github.com/sokinpui/lander/internal/diffparse"
	"github.com/sokinpui/lander/internal/editor"
	"github.com/sokinpui/lander/internal/fs"
	"github.com/sokinpui/lander/internal/logging"
	"github.com/sokinpui/lander/internal/parser"
	"github.com/sokinpui/lander/internal/patcher"
	"github.com/sokinpui/lander/internal/snapshot"
	"github.com/sokinpui/lander/internal/source"
	"github.com/sokinpui/lander/internal/state"
	"github.com/sokinpui/lander/internal/strict"
	"github.com/sokinpui/lander/internal/workspace"
	"github.com/sokinpui/lander/model"
)

// ErrDrifted is returned by undo when files changed after the patch was
// applied and --force was not given.
var ErrDrifted = errors.New("files changed since the patch was applied")

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(current, total int)

// App orchestrates the entire application logic.
type App struct {
	cfg              *cli.Config
	logger           *zap.Logger
	stateManager     *state.Manager
	sourceProvider   *source.Provider
	progressCallback ProgressUpdate
	stdout           io.Writer

	// selectHost is swapped in tests.
	selectHost func(editor.Options) (editor.Host, func(), error)
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// New creates a new App instance.
func New(cfg *cli.Config) (*App, error) {
	logger, err := logging.New(cfg.LogFile, cfg.LogLevel, false)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	stateManager, err := state.New(cfg.Root, cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state manager: %w", err)
	}

	sourceProvider := source.New(cfg.Input)
	if !cfg.NoAnimation {
		sourceProvider.Quiet()
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		stateManager:   stateManager,
		sourceProvider: sourceProvider,
		stdout:         os.Stdout,
		selectHost:     editor.Select,
	}, nil
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progressCallback = cb
}

// SetOutput redirects what --output-diff-fix prints.
func (a *App) SetOutput(w io.Writer) {
	a.stdout = w
}

// Close flushes the logger.
func (a *App) Close() {
	_ = a.logger.Sync()
}

// Execute executes the main application logic based on parsed flags.
func (a *App) Execute(ctx context.Context) (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic", zap.Any("value", r))
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch {
	case a.cfg.Undo:
		return a.undoLastPatch(ctx)
	case a.cfg.Accept:
		return a.acceptPending()
	case a.cfg.OutputDiffFix:
		return a.fixAndPrintDiffs()
	default:
		return a.processContent(ctx)
	}
}

func (a *App) processContent(ctx context.Context) (model.Summary, error) {
	content, err := a.sourceProvider.GetContent()
	if err != nil {
		return model.Summary{}, err
	}
	if strings.TrimSpace(content) == "" {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}
	return a.ApplyContent(ctx, content)
}

// ApplyContent extracts the diffs from content and applies them under the
// configured root. Successful applies, and failed ones that left partial
// changes, are recorded for undo.
func (a *App) ApplyContent(ctx context.Context, content string) (model.Summary, error) {
	diff, err := a.diffFrom(content)
	if err != nil {
		return model.Summary{}, err
	}
	if diff == "" {
		return model.Summary{Message: "No diff matched the extension filter. Nothing to do."}, nil
	}

	lock, err := workspace.AcquireLock(a.cfg.Root, a.stateManager.StateDir)
	if err != nil {
		return model.Summary{}, err
	}
	defer lock.Release()

	host, release, err := a.host()
	if err != nil {
		return model.Summary{}, err
	}
	defer release()

	p := patcher.New(strict.NewApplier(a.cfg.Git, a.logger), host, a.logger)
	if a.progressCallback != nil {
		total := len(diffparse.ExtractFilePaths(diff))
		a.progressCallback(0, total)
		p.SetProgress(func(done int) { a.progressCallback(done, total) })
	}

	result, applyErr := p.Apply(ctx, diff, a.cfg.Root)
	changes := Changes(result.OriginalStates)
	summary, err := a.summarize(result, changes)
	if err != nil {
		return model.Summary{}, err
	}

	if applyErr != nil {
		for _, d := range result.Diagnostics {
			if d.File != "" {
				summary.Failed = append(summary.Failed, fs.RelTo(a.cfg.Root, d.File))
			}
		}
		if len(changes) > 0 {
			if _, err := a.stateManager.Record(result); err != nil {
				a.logger.Error("could not record partial apply", zap.Error(err))
			} else {
				summary.Message = "Patch failed after partial changes. Run with --undo to revert them."
			}
		}
		return summary, applyErr
	}

	if len(changes) > 0 {
		entry, err := a.stateManager.Record(result)
		if err != nil {
			return summary, fmt.Errorf("failed to record history: %w", err)
		}
		a.logger.Info("recorded patch", zap.String("id", entry.ID))
	}
	if result.UsedFallback {
		summary.Message = fmt.Sprintf("Applied with the %s fallback.", result.Stage)
	}
	return summary, nil
}

func (a *App) diffFrom(content string) (string, error) {
	blocks, err := parser.ExtractDiffBlocks(content)
	if err != nil {
		return "", err
	}
	return parser.Join(parser.FilterByExtension(blocks, a.cfg.Extensions)), nil
}

func (a *App) host() (editor.Host, func(), error) {
	return a.selectHost(editor.Options{
		Mode:    editor.Mode(a.cfg.Editor),
		Address: a.cfg.NvimAddress,
		Format:  a.cfg.Format,
		Logger:  a.logger,
	})
}

// summarize sorts the changes into created, modified and deleted files, with
// paths relative to the root.
func (a *App) summarize(result model.ApplyResult, changes []FileChange) (model.Summary, error) {
	var summary model.Summary
	for _, c := range changes {
		rel := fs.RelTo(a.cfg.Root, c.Path)
		switch {
		case c.Created:
			summary.Created = append(summary.Created, rel)
		case c.Deleted:
			summary.Deleted = append(summary.Deleted, rel)
		default:
			added, removed := c.Stats()
			summary.Modified = append(summary.Modified, fmt.Sprintf("%s (+%d -%d)", rel, added, removed))
		}
	}
	if result.UsedFallback || !result.Success {
		summary.Diagnostics = result.Diagnostics
	}

	if a.cfg.ShowDiff {
		preview, err := RenderChanges(a.cfg.Root, changes)
		if err != nil {
			return summary, err
		}
		summary.Preview = preview
	}
	return summary, nil
}

// fixAndPrintDiffs corrects the hunk headers of every diff in the source and
// prints them to stdout.
func (a *App) fixAndPrintDiffs() (model.Summary, error) {
	content, err := a.sourceProvider.GetContent()
	if err != nil {
		return model.Summary{}, err
	}
	if strings.TrimSpace(content) == "" {
		return model.Summary{}, nil
	}

	diff, err := a.diffFrom(content)
	if err != nil {
		return model.Summary{}, err
	}
	files, err := diffparse.Parse(diff)
	if err != nil {
		return model.Summary{}, err
	}

	for _, fd := range files {
		var original string
		if !fd.IsNew {
			name := fd.OldPath
			if name == "" {
				name = fd.Target()
			}
			path, err := fs.ResolveWithin(a.cfg.Root, name)
			if err != nil {
				a.logger.Warn("skipping diff", zap.String("path", name), zap.Error(err))
				continue
			}
			if original, _, err = fs.ReadFile(path); err != nil {
				a.logger.Warn("skipping diff", zap.String("path", path), zap.Error(err))
				continue
			}
		}
		corrected, err := patcher.CorrectDiff(fd, original)
		if err != nil {
			// Silently skip failures for this mode.
			a.logger.Debug("could not correct diff", zap.String("path", fd.Target()), zap.Error(err))
			continue
		}
		fmt.Fprint(a.stdout, corrected)
	}
	return model.Summary{}, nil
}

// undoLastPatch restores the snapshots of the newest history entry.
func (a *App) undoLastPatch(ctx context.Context) (model.Summary, error) {
	lock, err := workspace.AcquireLock(a.cfg.Root, a.stateManager.StateDir)
	if err != nil {
		return model.Summary{}, err
	}
	defer lock.Release()

	entry, err := a.stateManager.Latest()
	if errors.Is(err, state.ErrEmpty) {
		return model.Summary{Message: "No patch to undo."}, nil
	}
	if err != nil {
		return model.Summary{}, err
	}

	if drifted := state.Drifted(entry); len(drifted) > 0 {
		if !a.cfg.Force {
			return model.Summary{Failed: a.relativize(drifted)},
				fmt.Errorf("%w: %s (use --force to undo anyway)", ErrDrifted, strings.Join(a.relativize(drifted), ", "))
		}
		a.logger.Warn("undoing over later edits", zap.Strings("paths", drifted))
	}

	host, release, err := a.host()
	if err != nil {
		return model.Summary{}, err
	}
	defer release()

	restored, failed := snapshot.NewRecorder(host, a.logger).Restore(ctx, a.cfg.Root, entry.States)
	if len(failed) == 0 {
		if _, err := a.stateManager.Pop(); err != nil {
			return model.Summary{}, fmt.Errorf("failed to update history: %w", err)
		}
	}

	return model.Summary{
		Modified: a.relativize(restored),
		Failed:   a.relativize(failed),
		Message:  fmt.Sprintf("Undid patch %s.", shortID(entry.ID)),
	}, nil
}

func (a *App) acceptPending() (model.Summary, error) {
	n, err := a.stateManager.AcceptAll()
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to update history: %w", err)
	}
	if n == 0 {
		return model.Summary{Message: "Nothing to accept."}, nil
	}
	return model.Summary{Message: fmt.Sprintf("Accepted %d pending patch(es).", n)}, nil
}

func (a *App) relativize(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = fs.RelTo(a.cfg.Root, p)
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
