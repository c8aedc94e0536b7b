package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/snot/packages/core/config"
	"github.com/abdul-hamid-achik/snot/packages/journal"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [packages]",
	Short: "Create Slick results for tests without running them",
	Long: `Discover the tests of the given packages and create a Slick result in
state "to be run" for each of them. Nothing is executed. The session is
recorded in the journal so a later "snot run --attach <session>" fills in
the same results.

Examples:
  snot schedule --project Checkout --test-run-name "Nightly {{date()}}"
  snot schedule ./shop/... && snot run ./shop/... --attach latest`,
	RunE: scheduleCommand,
}

func init() {
	addResultFlags(scheduleCmd)
}

func scheduleCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg = cfg.Merge(&config.Config{ScheduleOnly: config.BoolPtr(true), Reporters: []string{"console"}})

	patterns := args
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	attachFlag = ""
	if err := execute(context.Background(), cmd, cfg, patterns, &runSinks{}); err != nil {
		return err
	}

	jr, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer jr.Close()
	session, err := jr.Session(context.Background(), journal.Latest)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nScheduled session %s\n", session.ID)
	return nil
}
