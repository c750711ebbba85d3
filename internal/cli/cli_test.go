package cli

import (
	"log/slog"
	"testing"

	"github.com/vietddude/feedrelay/internal/core/domain"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseFeedIDs(t *testing.T) {
	ids, err := parseFeedIDs([]string{"3", "10"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != domain.FeedID(3) || ids[1] != domain.FeedID(10) {
		t.Errorf("unexpected ids: %v", ids)
	}

	if _, err := parseFeedIDs([]string{"-1"}); err == nil {
		t.Error("expected error for a negative id")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"feeds": false, "dropped": false, "reset-progress": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected %s command", name)
		}
	}
}
