package editor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNopHost(t *testing.T) {
	ctx := context.Background()
	var h Host = Nop{}

	docs, err := h.VisibleDocuments(ctx)
	require.NoError(t, err)
	require.Empty(t, docs)
	require.NoError(t, h.Open(ctx, "/tmp/x"))
	require.NoError(t, h.Close(ctx, "/tmp/x"))
	require.NoError(t, h.Format(ctx, "/tmp/x"))
	require.NoError(t, h.Save(ctx, "/tmp/x"))
}

func TestSelect(t *testing.T) {
	t.Setenv("NVIM_LISTEN_ADDRESS", "")

	tests := []struct {
		name    string
		mode    Mode
		wantNop bool
		wantErr bool
	}{
		{name: "none", mode: ModeNone, wantNop: true},
		{name: "auto without instance", mode: ModeAuto, wantNop: true},
		{name: "empty mode means auto", mode: "", wantNop: true},
		{name: "nvim without instance", mode: ModeNvim, wantErr: true},
		{name: "unknown", mode: "emacs", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, release, err := Select(Options{Mode: tt.mode})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer release()
			require.IsType(t, Nop{}, host)
		})
	}
}

func TestNewNvimRequiresAddress(t *testing.T) {
	t.Setenv("NVIM_LISTEN_ADDRESS", "")
	_, err := NewNvim("", true, nil)
	require.ErrorIs(t, err, ErrNoInstance)
}
