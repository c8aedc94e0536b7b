package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/snot/packages/core/config"
	"github.com/abdul-hamid-achik/snot/packages/core/runner"
)

var (
	pruneFlag          int
	sessionJournalFlag string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [id|latest]",
	Short: "Inspect the journal of recorded sessions",
	Long: `List the sessions recorded in the local journal, or show the results of
one session. Each run and schedule invocation is one session.

Examples:
  snot sessions
  snot sessions latest
  snot sessions --prune 20`,
	Args: cobra.MaximumNArgs(1),
	RunE: sessionsCommand,
}

func init() {
	sessionsCmd.Flags().IntVar(&pruneFlag, "prune", 0, "Delete all but the N most recent sessions")
	sessionsCmd.Flags().StringVar(&sessionJournalFlag, "journal", getEnvString("SNOT_JOURNAL", ""), "Journal database (env: SNOT_JOURNAL)")
}

func sessionsCommand(cmd *cobra.Command, args []string) error {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return withCode(ExitConfigError, err)
	}
	cfg := fileConfig.Merge(&config.Config{Journal: sessionJournalFlag})

	jr, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer jr.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if pruneFlag > 0 {
		n, err := jr.Prune(ctx, pruneFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d sessions\n", n)
		return nil
	}

	if len(args) == 1 {
		session, err := jr.Session(ctx, args[0])
		if err != nil {
			return withCode(ExitUsageError, fmt.Errorf("session %q: %w", args[0], err))
		}
		entries, err := jr.Entries(ctx, session.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Session %s (%s)\n", session.ID, session.CreatedAt.Format(time.RFC3339))
		if session.TestRunID != "" {
			fmt.Fprintf(out, "Test run: %s\n", session.TestRunID)
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\nTEST\tRESULT\tSTATUS\tOUTCOME\tDURATION")
		for _, e := range entries {
			outcome := "-"
			if e.Status == runner.Finished {
				outcome = e.Outcome.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\n", e.Identity, e.ResultID, e.Status, outcome, e.DurationMillis)
		}
		return w.Flush()
	}

	sessions, err := jr.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintf(out, "No sessions recorded in %s\n", jr.Path())
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tPROJECT\tTEST RUN\tMODE")
	for _, s := range sessions {
		mode := "run"
		if s.ScheduleOnly {
			mode = "schedule"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.CreatedAt.Format(time.RFC3339), s.Project, s.TestRunName, mode)
	}
	return w.Flush()
}
