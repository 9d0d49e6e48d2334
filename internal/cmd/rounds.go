package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"quorum/internal/config"
	"quorum/internal/store/sqlite"
	"quorum/internal/tui"
)

var roundsCmd = &cobra.Command{
	Use:   "rounds",
	Short: "List recorded coordination rounds",
	Long: `List the rounds persisted in the audit database, most recent first,
with their winner, termination reason, and debate statistics.`,
	RunE: runRounds,
}

func init() {
	rootCmd.AddCommand(roundsCmd)
}

func runRounds(cmd *cobra.Command, args []string) error {
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

	rounds, err := store.ListRounds(cmd.Context())
	if err != nil {
		return err
	}
	if len(rounds) == 0 {
		fmt.Println("No rounds recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROUND\tSTARTED\tELAPSED\tWINNER\tREASON\tDEBATES\tTASK")
	for _, r := range rounds {
		elapsed := "-"
		winner := "-"
		reason := "running"
		if r.CompletedAt != nil {
			elapsed = tui.FormatElapsed(r.CompletedAt.Sub(r.StartedAt))
			winner = r.WinnerAgent
			reason = r.Reason
		}
		task := r.Task
		if len(task) > 40 {
			task = task[:37] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format(time.DateTime),
			elapsed, winner, reason, r.DebateRounds, task)
	}
	return w.Flush()
}

// shortID abbreviates a UUID for table display; full IDs still work as
// command arguments.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
