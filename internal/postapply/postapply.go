// Package postapply finalizes files after a patch has been written.
package postapply

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sokinpui/lander/internal/editor"
	"github.com/sokinpui/lander/internal/fs"
)

// Processor deletes files a patch emptied and lets the editor format and
// save the rest.
type Processor struct {
	host   editor.Host
	logger *zap.Logger

	// Progress, if set, is called with the number of paths processed so far.
	Progress func(done int)
}

func New(host editor.Host, logger *zap.Logger) *Processor {
	if host == nil {
		host = editor.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{host: host, logger: logger}
}

// Process visits each touched path once. A file whose content is blank, or
// that no longer exists, has its views closed and is removed. Editor
// failures are logged and do not stop the pass.
func (p *Processor) Process(ctx context.Context, paths []string) (kept, deleted []string) {
	seen := make(map[string]bool, len(paths))
	done := 0
	for _, path := range paths {
		if seen[path] {
			continue
		}
		seen[path] = true

		if p.finalize(ctx, path) {
			kept = append(kept, path)
		} else {
			deleted = append(deleted, path)
		}

		done++
		if p.Progress != nil {
			p.Progress(done)
		}
	}
	return kept, deleted
}

func (p *Processor) finalize(ctx context.Context, path string) bool {
	content, exists, err := fs.ReadFile(path)
	if err != nil {
		p.logger.Warn("could not read patched file", zap.String("path", path), zap.Error(err))
		return true
	}

	if !exists || strings.TrimSpace(content) == "" {
		if err := p.host.Close(ctx, path); err != nil {
			p.logger.Debug("close failed", zap.String("path", path), zap.Error(err))
		}
		if err := fs.Remove(path); err != nil {
			p.logger.Warn("could not delete emptied file", zap.String("path", path), zap.Error(err))
			return true
		}
		p.logger.Info("deleted emptied file", zap.String("path", path))
		return false
	}

	if err := p.host.Format(ctx, path); err != nil {
		p.logger.Debug("format failed", zap.String("path", path), zap.Error(err))
	}
	if err := p.host.Save(ctx, path); err != nil {
		p.logger.Debug("save failed", zap.String("path", path), zap.Error(err))
	}
	return true
}
