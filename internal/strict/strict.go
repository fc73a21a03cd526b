// Package strict applies patches with `git apply`.
package strict

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Mode is the lenience level of a strict apply.
type Mode int

const (
	// ModeStrict tolerates whitespace differences only.
	ModeStrict Mode = iota
	// ModeRecount also ignores the line counts declared in hunk headers.
	ModeRecount
)

func (m Mode) String() string {
	if m == ModeRecount {
		return "recount"
	}
	return "strict"
}

func (m Mode) args() []string {
	args := []string{"apply", "--whitespace=fix"}
	if m == ModeRecount {
		args = append(args, "--recount")
	}
	return args
}

// Failure is returned when git rejects the patch.
type Failure struct {
	Mode   Mode
	Stderr string
	Err    error
}

func (f *Failure) Error() string {
	msg := strings.TrimSpace(f.Stderr)
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	return fmt.Sprintf("git apply (%s) failed: %s", f.Mode, msg)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// HasRejects reports whether git left reject artifacts behind, meaning some
// hunks may have landed.
func (f *Failure) HasRejects() bool {
	s := strings.ToLower(f.Stderr)
	return strings.Contains(s, ".rej") || strings.Contains(s, "rejected hunk") || strings.Contains(s, "with rejects")
}

// Applier runs git apply against a root directory. The patch is written to
// one artifact path per root, so two applies on the same root must not run
// concurrently.
type Applier struct {
	git      string
	logger   *zap.Logger
	artifact string
}

// NewApplier creates an Applier using the given git binary ("git" if empty).
func NewApplier(git string, logger *zap.Logger) *Applier {
	if git == "" {
		git = "git"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{git: git, logger: logger}
}

// ArtifactPath returns the transient patch file used for root.
func ArtifactPath(root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return filepath.Join(os.TempDir(), "lander-"+hex.EncodeToString(sum[:6])+".patch")
}

// Apply writes diff to the artifact and runs git apply in root. A non-nil
// error is a *Failure when git ran and refused the patch.
func (a *Applier) Apply(ctx context.Context, diff, root string, mode Mode) error {
	a.artifact = ArtifactPath(root)
	if !strings.HasSuffix(diff, "\n") {
		diff += "\n"
	}
	if err := os.WriteFile(a.artifact, []byte(diff), 0600); err != nil {
		return fmt.Errorf("write patch artifact: %w", err)
	}

	args := mode.args()
	if prefix := a.repoPrefix(ctx, root); prefix != "" {
		args = append(args, "--directory="+prefix)
	}
	args = append(args, a.artifact)

	cmd := exec.CommandContext(ctx, a.git, args...)
	cmd.Dir = root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr

	err := cmd.Run()
	if err == nil {
		a.logger.Debug("git apply succeeded", zap.Stringer("mode", mode), zap.String("root", root))
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("run %s: %w", a.git, err)
	}
	return &Failure{Mode: mode, Stderr: stderr.String(), Err: err}
}

// Cleanup deletes the artifact of the last Apply.
func (a *Applier) Cleanup() error {
	if a.artifact == "" {
		return nil
	}
	if err := os.Remove(a.artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// repoPrefix returns root's path relative to the top of its git work tree.
// git apply resolves patch paths from the top level, so a root below it
// needs the prefix. Outside a repository the prefix is empty.
func (a *Applier) repoPrefix(ctx context.Context, root string) string {
	cmd := exec.CommandContext(ctx, a.git, "rev-parse", "--show-prefix")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
