package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sheetflow-ai/sheetflow/store"
	"github.com/sheetflow-ai/sheetflow/store/postgres"
	"github.com/sheetflow-ai/sheetflow/store/sqlite"
)

// openRunStore prefers Postgres when a DSN is configured, falling back to
// the local SQLite database.
func openRunStore(ctx context.Context) (store.RunStore, error) {
	if cfg.PostgresDSN != "" {
		s, err := postgres.NewRunStore(ctx, postgres.Options{ConnString: cfg.PostgresDSN})
		if err != nil {
			return nil, err
		}
		if err := s.InitSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	}
	return sqlite.NewRunStore(sqlite.Options{Path: cfg.SQLitePath})
}

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openRunStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, run := range runs {
				line := fmt.Sprintf("%s  %-10s %-10s %s",
					run.StartedAt.Format("2006-01-02 15:04:05"), run.Pipeline, run.Status, run.ID)
				switch run.Status {
				case store.StatusSucceeded:
					fmt.Println(successStyle.Render(line))
				case store.StatusFailed:
					fmt.Println(errorStyle.Render(line))
				default:
					fmt.Println(line)
				}
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the file results of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openRunStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			results, err := s.ListFileResults(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.Error != "" {
					fmt.Println(errorStyle.Render(fmt.Sprintf("  %s: %s", r.File, r.Error)))
					continue
				}
				fmt.Println(successStyle.Render(
					fmt.Sprintf("  %s: %d rows (template %s)", r.File, r.Rows, r.Template)))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.AddCommand(show)
	return cmd
}
