package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
)

func TestPassOptionsFlagMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		offline      bool
		fullArticles bool
		noImages     bool
		wantMode     news.PassMode
	}{
		{name: "default is quick", wantMode: news.ModeQuick},
		{name: "full articles", fullArticles: true, wantMode: news.ModeArticles},
		{name: "offline", offline: true, wantMode: news.ModeFull},
		{name: "offline wins over full articles", offline: true, fullArticles: true, wantMode: news.ModeFull},
		{name: "no images carried", noImages: true, wantMode: news.ModeQuick},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := passOptions(tt.offline, tt.fullArticles, tt.noImages)
			require.Equal(t, tt.wantMode, opts.Mode)
			require.Equal(t, tt.noImages, opts.NoImages)
		})
	}
}

func TestRootListWithEmptyCache(t *testing.T) {
	buf := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"--list", "--cache-dir", t.TempDir()})

	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Contains(t, buf.String(), "no cached items")
}

func TestListSubcommandWithEmptyCache(t *testing.T) {
	buf := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"list", "--cache-dir", t.TempDir()})

	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Contains(t, buf.String(), "no cached items")
}
