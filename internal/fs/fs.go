package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PathResolutionError reports a patch path that does not stay inside the root.
type PathResolutionError struct {
	Path   string
	Root   string
	Reason string
}

func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("unsafe path %q (root %s): %s", e.Path, e.Root, e.Reason)
}

// RelTo returns p relative to root with forward slashes, falling back to p
// when it lies outside root.
func RelTo(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(rel)
}

// ResolveWithin joins p onto root and rejects results outside root.
// Absolute paths are accepted only when they already lie inside root.
func ResolveWithin(root, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", &PathResolutionError{Path: p, Root: root, Reason: "empty path"}
	}
	if strings.ContainsRune(p, 0) {
		return "", &PathResolutionError{Path: p, Root: root, Reason: "path contains NUL byte"}
	}

	root = filepath.Clean(root)
	native := filepath.FromSlash(p)
	var abs string
	if filepath.IsAbs(native) {
		abs = filepath.Clean(native)
	} else {
		abs = filepath.Clean(filepath.Join(root, native))
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", &PathResolutionError{Path: p, Root: root, Reason: err.Error()}
	}
	if rel == "." {
		return "", &PathResolutionError{Path: p, Root: root, Reason: "path resolves to the root itself"}
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &PathResolutionError{Path: p, Root: root, Reason: "path escapes root"}
	}
	return abs, nil
}

// ReadFile reads path. A missing file is reported with exists=false and no
// error.
func ReadFile(path string) (content string, exists bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// WriteFileAtomic writes content through a temp file and a rename, creating
// parent directories as needed. The mode of an existing file is kept.
func WriteFileAtomic(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".lander-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	_ = os.Chmod(tmpPath, mode)

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Remove deletes path. A file that is already gone is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsEmpty reports whether dir has no entries.
func IsEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}

// RemoveEmptyParents removes now-empty directories above path, stopping at
// root.
func RemoveEmptyParents(path, root string) {
	root = filepath.Clean(root)
	for dir := filepath.Dir(path); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		empty, err := IsEmpty(dir)
		if err != nil || !empty {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}
