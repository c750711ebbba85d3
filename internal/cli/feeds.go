package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "Show the feed assignments of the last run and their relay progress",
	Run:   runFeeds,
}

func init() {
	rootCmd.AddCommand(feedsCmd)
}

func runFeeds(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()
	store := openStore(ctx, cfg)
	defer func() {
		_ = store.Close()
	}()

	assignments, err := store.Feeds.GetAll(ctx)
	if err != nil {
		slog.Error("Failed to load feed assignments", "error", err)
		os.Exit(1)
	}
	all, err := store.Progress.GetAll(ctx)
	if err != nil {
		slog.Error("Failed to load relay progress", "error", err)
		os.Exit(1)
	}
	progress := make(map[domain.FeedID]*domain.RelayProgress, len(all))
	for _, p := range all {
		progress[p.FeedID] = p
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SOURCE\tFEED\tENDPOINT\tBLOCK\tUPDATED")
	for _, a := range assignments {
		block, updated := "-", "-"
		if p, ok := progress[a.FeedID]; ok {
			block = fmt.Sprint(p.BlockNumber)
			updated = p.UpdatedAt.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", a.SourceIndex, a.FeedID, a.Endpoint, block, updated)
	}
	_ = w.Flush()
}
