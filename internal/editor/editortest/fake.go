// Package editortest provides an in-memory editor host for tests.
package editortest

import (
	"context"
	"slices"
	"sync"
)

// Call is one recorded host operation.
type Call struct {
	Op   string
	Path string
}

// Fake records every call and tracks which documents are visible.
type Fake struct {
	mu      sync.Mutex
	visible []string
	calls   []Call

	// FailOn makes the named operation return Err.
	FailOn string
	Err    error
}

// New returns a Fake showing the given documents.
func New(visible ...string) *Fake {
	return &Fake{visible: slices.Clone(visible)}
}

func (f *Fake) VisibleDocuments(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.visible), nil
}

func (f *Fake) Open(_ context.Context, path string) error {
	if err := f.record("open", path); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !slices.Contains(f.visible, path) {
		f.visible = append(f.visible, path)
	}
	return nil
}

func (f *Fake) Close(_ context.Context, path string) error {
	if err := f.record("close", path); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = slices.DeleteFunc(f.visible, func(p string) bool { return p == path })
	return nil
}

func (f *Fake) Format(_ context.Context, path string) error { return f.record("format", path) }
func (f *Fake) Save(_ context.Context, path string) error   { return f.record("save", path) }

// Visible reports whether path is currently shown.
func (f *Fake) Visible(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.visible, path)
}

// Calls returns the recorded calls in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallsFor returns the operations recorded for path.
func (f *Fake) CallsFor(path string) []string {
	var ops []string
	for _, c := range f.Calls() {
		if c.Path == path {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

func (f *Fake) record(op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Path: path})
	if f.FailOn == op {
		return f.Err
	}
	return nil
}
