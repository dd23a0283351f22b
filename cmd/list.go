package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
)

// newListCmd creates the 'list' subcommand.
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached news without crawling",
		Long: `Prints the headlines stored in the cache manifest as a table.
No network requests are made.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return listCached(cmd, appInstance)
		},
	}
}

func listCached(cmd *cobra.Command, appInstance App) error {
	items, err := appInstance.Manager().ListCached()
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}
	renderFeed(cmd.OutOrStdout(), items)
	return nil
}

// renderFeed prints cached headlines as a table, or a short notice when the
// cache is empty.
func renderFeed(w io.Writer, items []news.FeedItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no cached items")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Link"})
	for i, item := range items {
		t.AppendRow(table.Row{i + 1, truncate(item.Title, 80), item.Link})
	}
	t.Render()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
