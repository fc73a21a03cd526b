package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/lander/model"
)

type fakeRunner struct {
	summary model.Summary
	err     error
}

func (f fakeRunner) Execute(context.Context) (model.Summary, error) {
	return f.summary, f.err
}

func TestRunProducesSummary(t *testing.T) {
	want := model.Summary{Modified: []string{"a.txt (+1 -1)"}, Message: "Applied with the fuzzy fallback."}
	m := New(context.Background(), fakeRunner{summary: want})

	msg := m.run()
	updated, cmd := m.Update(msg)
	require.NotNil(t, cmd)

	view := updated.View()
	require.Contains(t, view, "Applied with the fuzzy fallback.")
	require.Contains(t, view, "a.txt (+1 -1)")
	require.NoError(t, updated.(Model).Err())
}

func TestRunProducesError(t *testing.T) {
	m := New(context.Background(), fakeRunner{
		summary: model.Summary{Failed: []string{"a.txt"}},
		err:     errors.New("patch could not be applied by any stage"),
	})

	updated, _ := m.Update(m.run())
	view := updated.View()
	require.Contains(t, view, "Error: patch could not be applied by any stage")
	require.Contains(t, view, "a.txt")
	require.Error(t, updated.(Model).Err())
}

func TestProgressView(t *testing.T) {
	m := New(context.Background(), fakeRunner{})
	require.Contains(t, m.View(), "Processing...")

	updated, _ := m.Update(progressMsg{current: 1, total: 3})
	require.Contains(t, updated.View(), "Finalizing files [1/3]")
}

func TestQuitKey(t *testing.T) {
	m := New(context.Background(), fakeRunner{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
}

func TestRenderSummaryEmpty(t *testing.T) {
	require.Contains(t, renderSummary(model.Summary{}), "Nothing to do.")
}
