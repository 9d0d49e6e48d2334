package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"quorum/internal/config"
	"quorum/internal/store/sqlite"
	"quorum/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch <round-id>",
	Short: "Browse a recorded round interactively",
	Long: `Open a recorded round in an interactive viewer: an agent status
sidebar next to a scrollable event timeline. Moving the cursor through
the timeline scrubs agent statuses through the round's history.

The round ID may be abbreviated to any unique prefix.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	model := tui.NewModel(round, events, tui.ThemeByName(cfg.TUI.Theme), cfg.TUI.TimelineLimit)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
