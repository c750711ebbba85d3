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

var droppedCmd = &cobra.Command{
	Use:   "dropped [feed_id]",
	Short: "List relay items that were permanently dropped",
	Args:  cobra.MaximumNArgs(1),
	Run:   runDropped,
}

func init() {
	rootCmd.AddCommand(droppedCmd)
}

func runDropped(cmd *cobra.Command, args []string) {
	ids, err := parseFeedIDs(args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	var feed *domain.FeedID
	if len(ids) == 1 {
		feed = &ids[0]
	}

	cfg := loadConfig()
	ctx := context.Background()
	store := openStore(ctx, cfg)
	defer func() {
		_ = store.Close()
	}()

	items, err := store.Dropped.GetAll(ctx, feed)
	if err != nil {
		slog.Error("Failed to load dropped items", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "DROPPED\tFEED\tSOURCE\tBLOCK\tREASON\tATTEMPTS\tERROR")
	for _, it := range items {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%d\t%s\n",
			it.DroppedAt.Format(time.RFC3339), it.FeedID, it.SourceIndex, it.BlockNumber,
			it.Reason, it.Attempts, it.Error)
	}
	_ = w.Flush()
	fmt.Printf("%d dropped item(s)\n", len(items))
}
