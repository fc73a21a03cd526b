package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestProvider(path, stdin string, piped bool, clip string, clipErr error) *Provider {
	p := New(path).Quiet()
	p.stdin = strings.NewReader(stdin)
	p.piped = func() bool { return piped }
	p.clipboard = func() (string, error) { return clip, clipErr }
	return p
}

func TestGetContent(t *testing.T) {
	file := filepath.Join(t.TempDir(), "patch.diff")
	require.NoError(t, os.WriteFile(file, []byte("from file"), 0644))

	tests := []struct {
		name    string
		path    string
		stdin   string
		piped   bool
		clip    string
		clipErr error
		want    string
		wantErr bool
	}{
		{name: "file argument wins", path: file, stdin: "from stdin", piped: true, clip: "from clipboard", want: "from file"},
		{name: "dash reads stdin", path: "-", stdin: "from stdin", want: "from stdin"},
		{name: "piped stdin", stdin: "from stdin", piped: true, clip: "from clipboard", want: "from stdin"},
		{name: "clipboard", clip: "from clipboard", want: "from clipboard"},
		{name: "blank clipboard", clip: "  \n", want: ""},
		{name: "clipboard error", clipErr: errors.New("no xclip"), wantErr: true},
		{name: "missing file", path: filepath.Join(t.TempDir(), "missing"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(tt.path, tt.stdin, tt.piped, tt.clip, tt.clipErr)
			got, err := p.GetContent()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
