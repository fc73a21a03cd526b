package state

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sokinpui/lander/internal/fs"
	"github.com/sokinpui/lander/model"
)

const (
	stateDirName  = ".lander"
	stateFileName = "history.yaml"

	// DefaultLimit is the number of entries kept when no limit is configured.
	DefaultLimit = 20
)

// ErrEmpty is returned when there is no pending entry.
var ErrEmpty = errors.New("no pending patch in history")

// Entry is one applied patch that has been neither accepted nor undone.
type Entry struct {
	ID           string                    `yaml:"id"`
	Timestamp    int64                     `yaml:"timestamp"`
	Stage        string                    `yaml:"stage"`
	UsedFallback bool                      `yaml:"used_fallback"`
	States       []model.OriginalFileState `yaml:"states"`
	// Hashes holds the SHA-256 of every touched file right after the apply.
	// Deleted files have an empty hash.
	Hashes map[string]string `yaml:"hashes"`
}

// State is the content of the history file.
type State struct {
	Entries []Entry `yaml:"entries"`
}

// Manager owns the history file of one root.
type Manager struct {
	statePath string
	state     *State
	limit     int
	StateDir  string
}

// New loads the history under root. A missing or unreadable file starts an
// empty history.
func New(root string, limit int) (*Manager, error) {
	stateDir := filepath.Join(root, stateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	m := &Manager{
		statePath: filepath.Join(stateDir, stateFileName),
		limit:     limit,
		StateDir:  stateDir,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	m.state = &State{}
	content, exists, err := fs.ReadFile(m.statePath)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if !exists {
		return nil
	}
	if err := yaml.Unmarshal([]byte(content), m.state); err != nil {
		return fmt.Errorf("invalid history file %s: %w", m.statePath, err)
	}
	return nil
}

func (m *Manager) save() error {
	data, err := yaml.Marshal(m.state)
	if err != nil {
		return err
	}
	return fs.WriteFileAtomic(m.statePath, string(data))
}

// Record appends the snapshots of a successful apply and drops the oldest
// entries beyond the limit.
func (m *Manager) Record(result model.ApplyResult) (Entry, error) {
	entry := Entry{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC().Unix(),
		Stage:        result.Stage.String(),
		UsedFallback: result.UsedFallback,
		States:       result.OriginalStates,
		Hashes:       make(map[string]string),
	}
	for _, p := range result.Touched {
		entry.Hashes[p] = hashFile(p)
	}
	for _, p := range result.Deleted {
		entry.Hashes[p] = ""
	}
	// A failed apply may have written files without reporting them.
	for _, st := range result.OriginalStates {
		if _, ok := entry.Hashes[st.FilePath]; ok {
			continue
		}
		if changedSince(st) {
			entry.Hashes[st.FilePath] = hashFile(st.FilePath)
		}
	}

	m.state.Entries = append(m.state.Entries, entry)
	if over := len(m.state.Entries) - m.limit; over > 0 {
		m.state.Entries = m.state.Entries[over:]
	}
	return entry, m.save()
}

// Pending returns the entries awaiting a decision, oldest first.
func (m *Manager) Pending() []Entry {
	return m.state.Entries
}

// Latest returns the newest entry without removing it.
func (m *Manager) Latest() (Entry, error) {
	if len(m.state.Entries) == 0 {
		return Entry{}, ErrEmpty
	}
	return m.state.Entries[len(m.state.Entries)-1], nil
}

// Pop removes and returns the newest entry. Both undo and accept end with a
// Pop: undo restores the entry's states first, accept just forgets them.
func (m *Manager) Pop() (Entry, error) {
	entry, err := m.Latest()
	if err != nil {
		return Entry{}, err
	}
	m.state.Entries = m.state.Entries[:len(m.state.Entries)-1]
	return entry, m.save()
}

// AcceptAll forgets every pending entry and returns how many there were.
func (m *Manager) AcceptAll() (int, error) {
	n := len(m.state.Entries)
	m.state.Entries = nil
	return n, m.save()
}

// Drifted returns the touched files of entry whose content changed after
// the apply, sorted. Restoring them would discard those edits.
func Drifted(entry Entry) []string {
	var drifted []string
	for p, want := range entry.Hashes {
		if hashFile(p) != want {
			drifted = append(drifted, p)
		}
	}
	slices.Sort(drifted)
	return drifted
}

// changedSince reports whether the file no longer matches its snapshot.
func changedSince(st model.OriginalFileState) bool {
	content, exists, err := fs.ReadFile(st.FilePath)
	if err != nil {
		return false
	}
	if st.IsNew {
		return exists
	}
	return !exists || content != st.Content
}

// hashFile returns the hex SHA-256 of path, or "" when it cannot be read.
func hashFile(path string) string {
	content, exists, err := fs.ReadFile(path)
	if err != nil || !exists {
		return ""
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
