package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var resetProgressCmd = &cobra.Command{
	Use:   "reset-progress [feed_id...]",
	Short: "Clear the recorded relay progress of the given feeds, or of every feed",
	Run:   runResetProgress,
}

func init() {
	rootCmd.AddCommand(resetProgressCmd)
}

func runResetProgress(cmd *cobra.Command, args []string) {
	ids, err := parseFeedIDs(args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	cfg := loadConfig()
	ctx := context.Background()
	store := openStore(ctx, cfg)
	defer func() {
		_ = store.Close()
	}()

	n, err := store.Progress.Clear(ctx, ids...)
	if err != nil {
		slog.Error("Failed to reset progress", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Cleared progress of %d feed(s)\n", n)
}
