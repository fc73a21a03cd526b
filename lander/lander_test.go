package lander

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sokinpui/lander/cli"
	"github.com/sokinpui/lander/internal/config"
	"github.com/sokinpui/lander/internal/editor"
	"github.com/sokinpui/lander/internal/editor/editortest"
	"github.com/sokinpui/lander/internal/patcher"
	"github.com/sokinpui/lander/internal/state"
)

// missingGit forces the fuzzy stage so the tests do not depend on git.
const missingGit = "lander-test-no-such-git"

const modifyDiff = "--- a/a.txt\n+++ b/a.txt\n@@ -1,3 +1,3 @@\n foo\n-bar\n+qux\n baz\n"

const createDiff = "diff --git a/web/new.js b/web/new.js\nnew file mode 100644\n--- /dev/null\n+++ b/web/new.js\n@@ -0,0 +1 @@\n+console.log(1);\n"

func markdown(diffs ...string) string {
	out := "Here is the change:\n\n"
	for _, d := range diffs {
		out += "```diff\n" + d + "```\n\n"
	}
	return out
}

func newTestApp(t *testing.T, root string, mutate func(*cli.Config)) (*App, *editortest.Fake) {
	t.Helper()
	cfg := &cli.Config{
		Settings: config.Settings{
			Root:         root,
			Git:          missingGit,
			Editor:       "none",
			Format:       true,
			LogLevel:     "info",
			HistoryLimit: state.DefaultLimit,
		},
		NoAnimation: true,
	}
	if mutate != nil {
		mutate(cfg)
	}
	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	fake := editortest.New()
	app.selectHost = func(editor.Options) (editor.Host, func(), error) {
		return fake, func() {}, nil
	}
	return app, fake
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApplyContentThenUndo(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	writeFile(t, target, "foo\nbar\nbaz\n")

	app, fake := newTestApp(t, root, func(c *cli.Config) { c.ShowDiff = true })

	var progress [][2]int
	app.SetProgressCallback(func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})

	summary, err := app.ApplyContent(context.Background(), markdown(modifyDiff, createDiff))
	require.NoError(t, err)

	require.Equal(t, "foo\nqux\nbaz\n", readFile(t, target))
	require.Equal(t, "console.log(1);\n", readFile(t, filepath.Join(root, "web", "new.js")))
	require.Equal(t, []string{"web/new.js"}, summary.Created)
	require.Equal(t, []string{"a.txt (+1 -1)"}, summary.Modified)
	require.Equal(t, "Applied with the fuzzy fallback.", summary.Message)
	require.NotEmpty(t, summary.Diagnostics)
	require.Contains(t, summary.Preview, "-bar\n+qux\n")
	require.Contains(t, summary.Preview, "--- /dev/null\n+++ b/web/new.js\n")
	require.Equal(t, []string{"format", "save"}, fake.CallsFor(target))
	require.Equal(t, [2]int{0, 2}, progress[0])
	require.Equal(t, [2]int{2, 2}, progress[len(progress)-1])
	require.Len(t, app.stateManager.Pending(), 1)

	app.cfg.Undo = true
	summary, err = app.Execute(context.Background())
	require.NoError(t, err)
	require.Contains(t, summary.Message, "Undid patch")
	require.ElementsMatch(t, []string{"a.txt", "web/new.js"}, summary.Modified)
	require.Equal(t, "foo\nbar\nbaz\n", readFile(t, target))
	require.NoFileExists(t, filepath.Join(root, "web", "new.js"))
	require.NoDirExists(t, filepath.Join(root, "web"))
	require.Empty(t, app.stateManager.Pending())

	summary, err = app.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, "No patch to undo.", summary.Message)
}

func TestUndoRefusesDriftedFiles(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	writeFile(t, target, "foo\nbar\nbaz\n")

	app, _ := newTestApp(t, root, nil)
	_, err := app.ApplyContent(context.Background(), modifyDiff)
	require.NoError(t, err)

	writeFile(t, target, "edited by hand\n")

	app.cfg.Undo = true
	summary, err := app.Execute(context.Background())
	require.ErrorIs(t, err, ErrDrifted)
	require.Equal(t, []string{"a.txt"}, summary.Failed)
	require.Equal(t, "edited by hand\n", readFile(t, target))
	require.Len(t, app.stateManager.Pending(), 1)

	app.cfg.Force = true
	_, err = app.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, "foo\nbar\nbaz\n", readFile(t, target))
}

func TestAccept(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "foo\nbar\nbaz\n")

	app, _ := newTestApp(t, root, nil)
	_, err := app.ApplyContent(context.Background(), modifyDiff)
	require.NoError(t, err)

	app.cfg.Accept = true
	summary, err := app.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Accepted 1 pending patch(es).", summary.Message)
	require.Empty(t, app.stateManager.Pending())

	summary, err = app.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Nothing to accept.", summary.Message)
}

func TestApplyContentFailureLeavesNoHistory(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	writeFile(t, target, "something else entirely\n")

	app, _ := newTestApp(t, root, nil)
	summary, err := app.ApplyContent(context.Background(), modifyDiff)
	require.ErrorIs(t, err, patcher.ErrStagesExhausted)
	require.Equal(t, []string{"a.txt"}, summary.Failed)
	require.Equal(t, "something else entirely\n", readFile(t, target))
	require.Empty(t, app.stateManager.Pending())
}

func TestApplyContentExtensionFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "foo\nbar\nbaz\n")

	app, _ := newTestApp(t, root, func(c *cli.Config) { c.Extensions = []string{".go"} })
	summary, err := app.ApplyContent(context.Background(), markdown(modifyDiff))
	require.NoError(t, err)
	require.Contains(t, summary.Message, "Nothing to do")
	require.Equal(t, "foo\nbar\nbaz\n", readFile(t, filepath.Join(root, "a.txt")))
}

func TestExecuteReadsInputFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "foo\nbar\nbaz\n")
	input := filepath.Join(t.TempDir(), "reply.md")
	writeFile(t, input, markdown(modifyDiff))

	app, _ := newTestApp(t, root, func(c *cli.Config) { c.Input = input })
	_, err := app.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, "foo\nqux\nbaz\n", readFile(t, filepath.Join(root, "a.txt")))
}

func TestExecuteOutputDiffFix(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "foo\nbar\nbaz\n")
	input := filepath.Join(t.TempDir(), "reply.diff")
	writeFile(t, input, "--- a/a.txt\n+++ b/a.txt\n@@ -7,9 +7,9 @@\n foo\n-bar\n+qux\n baz\n")

	app, _ := newTestApp(t, root, func(c *cli.Config) {
		c.Input = input
		c.OutputDiffFix = true
	})
	var out bytes.Buffer
	app.SetOutput(&out)

	_, err := app.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, "--- a/a.txt\n+++ b/a.txt\n@@ -1,3 +1,3 @@\n foo\n-bar\n+qux\n baz\n", out.String())
	require.Equal(t, "foo\nbar\nbaz\n", readFile(t, filepath.Join(root, "a.txt")))
}

func TestExecuteRecoversPanic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "foo\nbar\nbaz\n")
	input := filepath.Join(t.TempDir(), "reply.diff")
	writeFile(t, input, modifyDiff)

	app, _ := newTestApp(t, root, func(c *cli.Config) { c.Input = input })
	app.selectHost = func(editor.Options) (editor.Host, func(), error) {
		panic("boom")
	}

	_, err := app.Execute(context.Background())
	var detailed *DetailedError
	require.True(t, errors.As(err, &detailed))
	require.Contains(t, detailed.Error(), "boom")
	require.NotEmpty(t, detailed.Stack)
}

func TestApplyLibrary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "foo\nbar\nbaz\n")

	got, err := Apply(context.Background(), markdown(modifyDiff, createDiff), Config{Root: root, Git: missingGit})
	require.NoError(t, err)
	require.Equal(t, []string{"web/new.js"}, got["Created"])
	require.Equal(t, []string{"a.txt (+1 -1)"}, got["Modified"])
	require.Equal(t, "foo\nqux\nbaz\n", readFile(t, filepath.Join(root, "a.txt")))

	_, err = Apply(context.Background(), "no diff here", Config{Root: root})
	require.Error(t, err)

	_, err = Apply(context.Background(), modifyDiff, Config{Root: root, Editor: "vscode"})
	require.Error(t, err)
}
