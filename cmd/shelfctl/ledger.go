package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"shelfproc/internal/adapter/repo"
	"shelfproc/internal/domain"
	"shelfproc/internal/infra"
)

// withLedger opens the Postgres ledger from the environment for one command.
func withLedger(cmd *cobra.Command, fn func(*repo.LedgerPG) error) error {
	ctx := cmd.Context()
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := cliLogger(cmd)
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(repo.NewLedgerPG(infra.NewSQLRunner(pool, logger), cfg.ProcessType, cfg.MaxAttempts))
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(l *repo.LedgerPG) error {
				counts, err := l.CountByState(cmd.Context())
				if err != nil {
					return err
				}
				states := []domain.JobState{domain.JobStatePending, domain.JobStateProcessing, domain.JobStateCompleted, domain.JobStateFailed}
				if outputJSON {
					out := map[string]int{}
					for _, s := range states {
						out[string(s)] = counts[s]
					}
					return printJSON(cmd, out)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "STATE\tJOBS")
				for _, s := range states {
					fmt.Fprintf(tw, "%s\t%d\n", s, counts[s])
				}
				return tw.Flush()
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <source-id>",
		Short: "Move a failed job back to pending with a fresh attempt count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID := args[0]
			if _, err := uuid.Parse(sourceID); err != nil {
				return fmt.Errorf("source id must be a uuid: %w", err)
			}
			return withLedger(cmd, func(l *repo.LedgerPG) error {
				err := l.ResetFailed(cmd.Context(), sourceID)
				switch {
				case errors.Is(err, domain.ErrNotFound):
					return fmt.Errorf("no job recorded for %s", sourceID)
				case errors.Is(err, domain.ErrInvalidTransition):
					return fmt.Errorf("job for %s is not failed", sourceID)
				case err != nil:
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %s to pending\n", sourceID)
				return nil
			})
		},
	}
}
