package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/lander/model"
)

func TestRecordAndPop(t *testing.T) {
	root := t.TempDir()
	touched := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(touched, []byte("patched\n"), 0644))

	m, err := New(root, 0)
	require.NoError(t, err)

	_, err = m.Latest()
	require.ErrorIs(t, err, ErrEmpty)

	result := model.ApplyResult{
		Success:      true,
		UsedFallback: true,
		Stage:        model.StageFuzzy,
		OriginalStates: []model.OriginalFileState{
			{FilePath: touched, Content: "original\n", WorkspaceName: "ws"},
		},
		Touched: []string{touched},
	}
	entry, err := m.Record(result)
	require.NoError(t, err)
	_, err = uuid.Parse(entry.ID)
	require.NoError(t, err)
	require.Equal(t, "fuzzy", entry.Stage)
	require.Empty(t, Drifted(entry))

	// Reload from disk.
	m2, err := New(root, 0)
	require.NoError(t, err)
	require.Len(t, m2.Pending(), 1)
	got, err := m2.Pop()
	require.NoError(t, err)
	require.Equal(t, entry.ID, got.ID)
	require.Equal(t, result.OriginalStates, got.States)
	require.True(t, got.UsedFallback)

	m3, err := New(root, 0)
	require.NoError(t, err)
	require.Empty(t, m3.Pending())
}

func TestRecordLimit(t *testing.T) {
	m, err := New(t.TempDir(), 2)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		e, err := m.Record(model.ApplyResult{Success: true})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	pending := m.Pending()
	require.Len(t, pending, 2)
	require.Equal(t, ids[1], pending[0].ID)
	require.Equal(t, ids[2], pending[1].ID)

	n, err := m.AcceptAll()
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Empty(t, m.Pending())
}

func TestDrifted(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1\n"), 0644))

	m, err := New(root, 0)
	require.NoError(t, err)
	entry, err := m.Record(model.ApplyResult{Touched: []string{path}})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("edited by hand\n"), 0644))
	require.Equal(t, []string{path}, Drifted(entry))
}

func TestDriftedAfterPartialFailure(t *testing.T) {
	root := t.TempDir()
	written := filepath.Join(root, "b.txt")
	created := filepath.Join(root, "a.txt")
	untouched := filepath.Join(root, "c.txt")
	require.NoError(t, os.WriteFile(written, []byte("half applied\n"), 0644))
	require.NoError(t, os.WriteFile(created, []byte("new\n"), 0644))
	require.NoError(t, os.WriteFile(untouched, []byte("same\n"), 0644))

	m, err := New(root, 0)
	require.NoError(t, err)

	// The apply failed after writing, so nothing is reported as touched.
	entry, err := m.Record(model.ApplyResult{
		OriginalStates: []model.OriginalFileState{
			{FilePath: written, Content: "before\n"},
			{FilePath: created, IsNew: true},
			{FilePath: untouched, Content: "same\n"},
		},
	})
	require.NoError(t, err)
	require.Len(t, entry.Hashes, 2)
	require.NotContains(t, entry.Hashes, untouched)
	require.Empty(t, Drifted(entry))

	require.NoError(t, os.WriteFile(written, []byte("edited by hand\n"), 0644))
	require.NoError(t, os.WriteFile(created, []byte("edited by hand\n"), 0644))
	require.Equal(t, []string{created, written}, Drifted(entry))
}

func TestInvalidHistoryFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, stateDirName), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, stateDirName, stateFileName), []byte("entries: [oops"), 0644))

	_, err := New(root, 0)
	require.Error(t, err)
}
