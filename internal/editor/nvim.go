package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/neovim/go-client/nvim"
	"go.uber.org/zap"
)

// ErrNoInstance is returned when no Neovim address is known.
var ErrNoInstance = errors.New("no neovim instance: NVIM_LISTEN_ADDRESS is not set")

const (
	closeLua = `local buf = vim.fn.bufnr(...)
if buf ~= -1 then vim.api.nvim_buf_delete(buf, { force = true }) end`

	openLua = `vim.cmd('edit ' .. vim.fn.fnameescape(...))`

	formatLua = `local buf = vim.fn.bufadd(...)
vim.fn.bufload(buf)
vim.api.nvim_buf_call(buf, function()
  vim.cmd('silent! edit!')
  pcall(vim.lsp.buf.format, { bufnr = buf, async = false })
end)`

	saveLua = `local buf = vim.fn.bufadd(...)
vim.fn.bufload(buf)
vim.api.nvim_buf_call(buf, function() vim.cmd('silent! update') end)`
)

// Nvim drives a running Neovim instance over its RPC socket.
type Nvim struct {
	nvim   *nvim.Nvim
	format bool
	logger *zap.Logger
}

// NewNvim connects to the Neovim instance listening on address, or on
// NVIM_LISTEN_ADDRESS when address is empty. When format is false Format
// only reloads the buffer.
func NewNvim(address string, format bool, logger *zap.Logger) (*Nvim, error) {
	if address == "" {
		address = os.Getenv("NVIM_LISTEN_ADDRESS")
	}
	if address == "" {
		return nil, ErrNoInstance
	}

	v, err := nvim.Dial(address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nvim at %s: %w", address, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Nvim{nvim: v, format: format, logger: logger}, nil
}

// Disconnect disconnects from Neovim.
func (n *Nvim) Disconnect() {
	if n.nvim != nil {
		n.nvim.Close()
	}
}

func (n *Nvim) VisibleDocuments(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	windows, err := n.nvim.Windows()
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}

	seen := make(map[string]bool)
	var docs []string
	for _, w := range windows {
		buf, err := n.nvim.WindowBuffer(w)
		if err != nil {
			continue
		}
		name, err := n.nvim.BufferName(buf)
		if err != nil || name == "" {
			continue
		}
		if abs, err := filepath.Abs(name); err == nil {
			name = abs
		}
		if !seen[name] {
			seen[name] = true
			docs = append(docs, name)
		}
	}
	return docs, nil
}

func (n *Nvim) Open(ctx context.Context, path string) error {
	return n.exec(ctx, "open", openLua, path)
}

func (n *Nvim) Close(ctx context.Context, path string) error {
	return n.exec(ctx, "close", closeLua, path)
}

func (n *Nvim) Format(ctx context.Context, path string) error {
	code := formatLua
	if !n.format {
		code = `local buf = vim.fn.bufadd(...)
vim.fn.bufload(buf)
vim.api.nvim_buf_call(buf, function() vim.cmd('silent! edit!') end)`
	}
	return n.exec(ctx, "format", code, path)
}

func (n *Nvim) Save(ctx context.Context, path string) error {
	return n.exec(ctx, "save", saveLua, path)
}

func (n *Nvim) exec(ctx context.Context, op, code, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.nvim.ExecLua(code, nil, path); err != nil {
		n.logger.Debug("nvim operation failed", zap.String("op", op), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("nvim %s %s: %w", op, path, err)
	}
	return nil
}
