// Package snapshot records file contents before a patch mutates them and
// restores them on undo.
package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/sokinpui/lander/internal/diffparse"
	"github.com/sokinpui/lander/internal/editor"
	"github.com/sokinpui/lander/internal/fs"
	"github.com/sokinpui/lander/model"
)

// ReadError reports a file that could not be read while snapshotting.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Recorder snapshots and restores files under a root.
type Recorder struct {
	host   editor.Host
	logger *zap.Logger
}

// NewRecorder creates a Recorder. A nil host means no editor is attached.
func NewRecorder(host editor.Host, logger *zap.Logger) *Recorder {
	if host == nil {
		host = editor.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{host: host, logger: logger}
}

// Snapshot records the current content of every file diff names. Unsafe
// paths and unreadable files are logged and left out; they never fail the
// batch.
func (r *Recorder) Snapshot(diff, root string) []model.OriginalFileState {
	workspace := filepath.Base(filepath.Clean(root))

	var states []model.OriginalFileState
	for _, p := range diffparse.ExtractFilePaths(diff) {
		abs, err := fs.ResolveWithin(root, p)
		if err != nil {
			r.logger.Warn("skipping unsafe path", zap.String("path", p), zap.Error(err))
			continue
		}

		content, exists, err := fs.ReadFile(abs)
		if err != nil {
			r.logger.Warn("file left out of snapshot", zap.Error(&ReadError{Path: abs, Err: err}))
			continue
		}

		states = append(states, model.OriginalFileState{
			FilePath:      abs,
			Content:       content,
			IsNew:         !exists,
			WorkspaceName: workspace,
		})
	}
	return states
}

// Restore puts every file back the way states recorded it. Files that were
// created are deleted along with any directories left empty under root.
// Visible documents are closed first and reopened afterwards.
func (r *Recorder) Restore(ctx context.Context, root string, states []model.OriginalFileState) (restored, failed []string) {
	visible, err := r.host.VisibleDocuments(ctx)
	if err != nil {
		r.logger.Debug("could not list visible documents", zap.Error(err))
	}

	var reopen []string
	for _, st := range states {
		if slices.Contains(visible, st.FilePath) {
			if err := r.host.Close(ctx, st.FilePath); err != nil {
				r.logger.Debug("close before restore failed", zap.String("path", st.FilePath), zap.Error(err))
			}
			reopen = append(reopen, st.FilePath)
		}
	}

	for _, st := range states {
		if err := ctx.Err(); err != nil {
			failed = append(failed, st.FilePath)
			continue
		}
		if err := restoreOne(root, st); err != nil {
			r.logger.Error("restore failed", zap.String("path", st.FilePath), zap.Error(err))
			failed = append(failed, st.FilePath)
			continue
		}
		restored = append(restored, st.FilePath)
	}

	for _, p := range reopen {
		if !fs.Exists(p) {
			continue
		}
		if err := r.host.Open(ctx, p); err != nil {
			r.logger.Debug("reopen after restore failed", zap.String("path", p), zap.Error(err))
		}
	}
	return restored, failed
}

func restoreOne(root string, st model.OriginalFileState) error {
	if st.IsNew {
		if err := fs.Remove(st.FilePath); err != nil {
			return err
		}
		fs.RemoveEmptyParents(st.FilePath, root)
		return nil
	}
	return fs.WriteFileAtomic(st.FilePath, st.Content)
}
