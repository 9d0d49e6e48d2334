package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"quorum/internal/config"
	"quorum/internal/store/sqlite"
	"quorum/internal/tui"
)

var replayCmd = &cobra.Command{
	Use:   "replay <round-id>",
	Short: "Print a recorded round's event timeline",
	Long: `Print the full coordination timeline of one recorded round to stdout:
every committed answer, vote (including discarded stale votes), restart
cascade, and worker error, in the order the control loop applied them.

The round ID may be abbreviated to any unique prefix.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := sqlite.Open(storePath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(cmd.Context()); err != nil {
		return err
	}

	round, err := resolveRound(cmd.Context(), store, args[0])
	if err != nil {
		return err
	}
	events, err := store.ListEvents(cmd.Context(), round.ID)
	if err != nil {
		return err
	}

	theme := tui.ThemeByName(cfg.TUI.Theme)
	// Plain output when stdout is not a terminal, regardless of theme.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		theme = tui.MonoTheme()
	}

	fmt.Print(tui.RenderTranscript(round, events, theme))
	return nil
}

// resolveRound finds a round by ID or unique ID prefix.
func resolveRound(ctx context.Context, store *sqlite.Store, idOrPrefix string) (sqlite.Round, error) {
	if r, err := store.GetRound(ctx, idOrPrefix); err == nil {
		return r, nil
	}

	rounds, err := store.ListRounds(ctx)
	if err != nil {
		return sqlite.Round{}, err
	}
	var matches []sqlite.Round
	for _, r := range rounds {
		if strings.HasPrefix(r.ID, idOrPrefix) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return sqlite.Round{}, fmt.Errorf("no round matching %q", idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return sqlite.Round{}, fmt.Errorf("round prefix %q is ambiguous (%d matches)", idOrPrefix, len(matches))
	}
}
