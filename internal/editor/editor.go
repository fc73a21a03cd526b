// Package editor abstracts the editor that may have the patched files open.
package editor

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Host is the set of document operations the engine needs from an editor.
// Paths are absolute.
type Host interface {
	// VisibleDocuments lists the files shown in editor windows.
	VisibleDocuments(ctx context.Context) ([]string, error)
	Open(ctx context.Context, path string) error
	// Close drops any view of path without saving it.
	Close(ctx context.Context, path string) error
	Format(ctx context.Context, path string) error
	Save(ctx context.Context, path string) error
}

// Nop is the host used when no editor is attached. Files are already on
// disk, so every operation succeeds without doing anything.
type Nop struct{}

func (Nop) VisibleDocuments(context.Context) ([]string, error) { return nil, nil }
func (Nop) Open(context.Context, string) error                 { return nil }
func (Nop) Close(context.Context, string) error                { return nil }
func (Nop) Format(context.Context, string) error               { return nil }
func (Nop) Save(context.Context, string) error                 { return nil }

// Mode selects the editor host.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeNvim Mode = "nvim"
	ModeNone Mode = "none"
)

// Options configure Select.
type Options struct {
	Mode    Mode
	Address string
	Format  bool
	Logger  *zap.Logger
}

// Select returns the host for opts and a function releasing it. In auto mode
// a missing Neovim instance falls back to Nop.
func Select(opts Options) (Host, func(), error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch opts.Mode {
	case ModeNone:
		return Nop{}, func() {}, nil
	case ModeNvim:
		n, err := NewNvim(opts.Address, opts.Format, logger)
		if err != nil {
			return nil, nil, err
		}
		return n, n.Disconnect, nil
	case ModeAuto, "":
		n, err := NewNvim(opts.Address, opts.Format, logger)
		if err != nil {
			logger.Debug("no neovim instance, using disk only", zap.Error(err))
			return Nop{}, func() {}, nil
		}
		return n, n.Disconnect, nil
	default:
		return nil, nil, fmt.Errorf("unknown editor mode %q", opts.Mode)
	}
}
