package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				return fmt.Errorf("--limit must be > 0, got %d", limit)
			}

			db, err := openDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			runs, err := db.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs stored.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWHEN\tSEED\tHALT\tTICKS\tSPLIT\tOPTIMAL\tBEST")
			for _, r := range runs {
				when := r.CreatedAt
				if t, err := time.Parse(time.RFC3339Nano, r.CreatedAt); err == nil {
					when = humanize.Time(t)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%t\t%t\t%s\n",
					r.ID, when, r.Seed, r.Halt, humanize.Comma(int64(r.Ticks)),
					r.ColonySplit, r.FinalDecisionOptimal, r.Best)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("db", "data/househunt.db", "SQLite run database")
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	return cmd
}
