// Package patcher sequences the apply pipeline: new files are written
// directly, everything else goes through git apply, git apply --recount and
// finally the fuzzy engine.
package patcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/sokinpui/lander/internal/diffparse"
	"github.com/sokinpui/lander/internal/editor"
	"github.com/sokinpui/lander/internal/fs"
	"github.com/sokinpui/lander/internal/fuzzy"
	"github.com/sokinpui/lander/internal/postapply"
	"github.com/sokinpui/lander/internal/snapshot"
	"github.com/sokinpui/lander/internal/strict"
	"github.com/sokinpui/lander/model"
)

var (
	// ErrNoFiles means the diff names no file that could be patched.
	ErrNoFiles = errors.New("no file paths found in diff")
	// ErrStagesExhausted means every stage of the pipeline failed.
	ErrStagesExhausted = errors.New("patch could not be applied by any stage")
)

// WriteError reports a failed write of patched content.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// StrictApplier is the external apply capability used by the first two
// stages.
type StrictApplier interface {
	Apply(ctx context.Context, diff, root string, mode strict.Mode) error
	Cleanup() error
}

// Patcher applies patch documents to files under a root.
type Patcher struct {
	strict   StrictApplier
	host     editor.Host
	recorder *snapshot.Recorder
	post     *postapply.Processor
	logger   *zap.Logger
}

// New creates a Patcher. A nil host means no editor is attached.
func New(applier StrictApplier, host editor.Host, logger *zap.Logger) *Patcher {
	if host == nil {
		host = editor.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Patcher{
		strict:   applier,
		host:     host,
		recorder: snapshot.NewRecorder(host, logger),
		post:     postapply.New(host, logger),
		logger:   logger,
	}
}

// SetProgress registers a callback for the post-apply pass.
func (p *Patcher) SetProgress(fn func(done int)) {
	p.post.Progress = fn
}

type route int

const (
	routeNewFile route = iota
	routeModify
)

// target is a file section with everything phase two needs to write it.
type target struct {
	route    route
	diff     diffparse.FileDiff
	path     string
	oldPath  string
	original string
}

// Apply applies diff to the files under root.
//
// Phase one only reads: it parses the diff, snapshots every named file and
// loads the text each modification starts from. Phase two writes. The
// returned result carries the snapshots even on failure so the caller can
// undo a partial best-effort pass.
func (p *Patcher) Apply(ctx context.Context, diff, root string) (model.ApplyResult, error) {
	var result model.ApplyResult

	if len(diffparse.ExtractFilePaths(diff)) == 0 {
		return result, ErrNoFiles
	}
	files, err := diffparse.Parse(diff)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrNoFiles, err)
	}

	result.OriginalStates = p.recorder.Snapshot(diff, root)
	targets := p.plan(files, root, &result)
	if len(targets) == 0 {
		return result, ErrNoFiles
	}

	defer func() {
		if err := p.strict.Cleanup(); err != nil {
			p.logger.Debug("could not remove patch artifact", zap.Error(err))
		}
	}()

	closed := p.closeVisible(ctx, targets)

	var modify, create []target
	for _, t := range targets {
		if t.route == routeNewFile {
			create = append(create, t)
		} else {
			modify = append(modify, t)
		}
	}

	var touched []string
	if len(modify) > 0 {
		stage, paths, rejects, err := p.runPipeline(ctx, root, modify, &result)
		if err != nil {
			p.fail(ctx, modify, closed, rejects, err)
			return result, err
		}
		result.Stage = stage
		result.UsedFallback = stage == model.StageRecount || stage == model.StageFuzzy
		touched = append(touched, paths...)
	}

	if len(create) > 0 {
		for _, t := range create {
			if err := fs.WriteFileAtomic(t.path, t.diff.NewContent()); err != nil {
				werr := &WriteError{Path: t.path, Err: err}
				// Files already written stay written; finish them like a success.
				if len(touched) > 0 {
					result.Touched, result.Deleted = p.post.Process(ctx, touched)
				}
				p.fail(ctx, nil, closed, false, werr)
				return result, werr
			}
			touched = append(touched, t.path)
		}
		if result.Stage == model.StageNone {
			result.Stage = model.StageNewFile
		}
	}

	kept, deleted := p.post.Process(ctx, touched)
	p.reopen(ctx, closed)

	result.Success = true
	result.Touched = kept
	result.Deleted = deleted
	p.logger.Info("patch applied",
		zap.Stringer("stage", result.Stage),
		zap.Bool("used_fallback", result.UsedFallback),
		zap.Int("files", len(touched)),
	)
	return result, nil
}

// plan resolves every section into a target. Sections with unsafe paths or
// unreadable originals become diagnostics and are skipped.
func (p *Patcher) plan(files []diffparse.FileDiff, root string, result *model.ApplyResult) []target {
	originals := make(map[string]model.OriginalFileState, len(result.OriginalStates))
	for _, st := range result.OriginalStates {
		originals[st.FilePath] = st
	}

	var targets []target
	for _, fd := range files {
		path, err := fs.ResolveWithin(root, fd.Target())
		if err != nil {
			p.diagnose(result, model.StageNone, fd.Target(), err)
			continue
		}

		t := target{diff: fd, path: path}
		if fd.IsNew {
			t.route = routeNewFile
			targets = append(targets, t)
			continue
		}

		t.route = routeModify
		source := path
		if fd.IsRenamed {
			oldPath, err := fs.ResolveWithin(root, fd.OldPath)
			if err != nil {
				p.diagnose(result, model.StageNone, fd.OldPath, err)
				continue
			}
			t.oldPath = oldPath
			source = oldPath
		}

		st, ok := originals[source]
		if !ok {
			content, exists, err := fs.ReadFile(source)
			if err != nil {
				p.diagnose(result, model.StageNone, source, &snapshot.ReadError{Path: source, Err: err})
				continue
			}
			st = model.OriginalFileState{
				FilePath:      source,
				Content:       content,
				IsNew:         !exists,
				WorkspaceName: filepath.Base(filepath.Clean(root)),
			}
			// Renames also remove the old path; keep it undoable.
			result.OriginalStates = append(result.OriginalStates, st)
			originals[source] = st
		}
		t.original = st.Content
		targets = append(targets, t)
	}
	return targets
}

// runPipeline applies the modify targets, trying each stage only when the
// previous one failed. rejects reports whether git left partial results.
func (p *Patcher) runPipeline(ctx context.Context, root string, targets []target, result *model.ApplyResult) (stage model.Stage, paths []string, rejects bool, err error) {
	var sections []string
	for _, t := range targets {
		sections = append(sections, t.diff.Text)
	}
	combined := strings.Join(sections, "")

	for _, mode := range []strict.Mode{strict.ModeStrict, strict.ModeRecount} {
		stage := stageFor(mode)
		err := p.strict.Apply(ctx, combined, root, mode)
		if err == nil {
			return stage, touchedPaths(targets), false, nil
		}
		if ctx.Err() != nil {
			return model.StageNone, nil, rejects, ctx.Err()
		}
		var failure *strict.Failure
		if errors.As(err, &failure) && failure.HasRejects() {
			rejects = true
		}
		p.diagnose(result, stage, "", err)
	}

	stage, paths, err = p.fuzzyStage(targets, result)
	return stage, paths, rejects, err
}

// fuzzyStage computes the patched text of every target before writing any
// of them, so a block that cannot be found leaves the disk untouched.
func (p *Patcher) fuzzyStage(targets []target, result *model.ApplyResult) (model.Stage, []string, error) {
	outputs := make([]string, len(targets))
	var errs []error
	for i, t := range targets {
		out, err := fuzzy.Apply(t.original, t.diff.Hunks)
		if err != nil {
			err = fmt.Errorf("%s: %w", t.diff.Target(), err)
			p.diagnose(result, model.StageFuzzy, t.path, err)
			errs = append(errs, err)
			continue
		}
		outputs[i] = out
	}
	if len(errs) > 0 {
		return model.StageNone, nil, fmt.Errorf("%w: %w", ErrStagesExhausted, errors.Join(errs...))
	}

	for i, t := range targets {
		if err := fs.WriteFileAtomic(t.path, outputs[i]); err != nil {
			return model.StageNone, nil, &WriteError{Path: t.path, Err: err}
		}
		if t.oldPath != "" && t.oldPath != t.path {
			if err := fs.Remove(t.oldPath); err != nil {
				return model.StageNone, nil, &WriteError{Path: t.oldPath, Err: err}
			}
		}
	}
	return model.StageFuzzy, touchedPaths(targets), nil
}

// fail finishes a failed apply: documents closed for the mutation are
// reopened, and when git reported rejects the files it did change are still
// post-processed.
func (p *Patcher) fail(ctx context.Context, modify []target, closed []string, rejects bool, err error) {
	p.logger.Error("patch failed", zap.Error(err))

	if rejects {
		var changed []string
		for _, t := range modify {
			content, _, rerr := fs.ReadFile(t.path)
			if rerr == nil && content != t.original {
				changed = append(changed, t.path)
			}
		}
		if len(changed) > 0 {
			p.logger.Info("post-processing partially applied files", zap.Strings("paths", changed))
			p.post.Process(ctx, changed)
		}
	}
	p.reopen(ctx, closed)
}

func (p *Patcher) closeVisible(ctx context.Context, targets []target) []string {
	visible, err := p.host.VisibleDocuments(ctx)
	if err != nil {
		p.logger.Debug("could not list visible documents", zap.Error(err))
		return nil
	}

	var closed []string
	for _, path := range touchedPaths(targets) {
		if !slices.Contains(visible, path) {
			continue
		}
		if err := p.host.Close(ctx, path); err != nil {
			p.logger.Debug("close failed", zap.String("path", path), zap.Error(err))
			continue
		}
		closed = append(closed, path)
	}
	return closed
}

func (p *Patcher) reopen(ctx context.Context, closed []string) {
	for _, path := range closed {
		if !fs.Exists(path) {
			continue
		}
		if err := p.host.Open(ctx, path); err != nil {
			p.logger.Debug("reopen failed", zap.String("path", path), zap.Error(err))
		}
	}
}

func (p *Patcher) diagnose(result *model.ApplyResult, stage model.Stage, file string, err error) {
	result.Diagnostics = append(result.Diagnostics, model.Diagnostic{Stage: stage, File: file, Err: err})
	p.logger.Warn("stage failed", zap.Stringer("stage", stage), zap.String("file", file), zap.Error(err))
}

func touchedPaths(targets []target) []string {
	var paths []string
	for _, t := range targets {
		paths = append(paths, t.path)
		if t.oldPath != "" && t.oldPath != t.path {
			paths = append(paths, t.oldPath)
		}
	}
	return paths
}

func stageFor(mode strict.Mode) model.Stage {
	if mode == strict.ModeRecount {
		return model.StageRecount
	}
	return model.StageStrict
}
