package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/househunt/internal/batch"
	"github.com/talgya/househunt/internal/config"
	"github.com/talgya/househunt/internal/persistence"
	"github.com/talgya/househunt/internal/report"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run many seeds of an experiment in parallel",
		Long: `Run consecutive seeds of one experiment, write one summary CSV row per
run and print split and optimal-decision rates.

Examples:
  househunt batch --runs 200 --summary runs.csv
  househunt batch --random-sites 6 --runs 50 --parallel 4 --db data/househunt.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, _ := cmd.Flags().GetInt("runs")
			parallel, _ := cmd.Flags().GetInt("parallel")
			randomSites, _ := cmd.Flags().GetInt("random-sites")
			seed, _ := cmd.Flags().GetInt64("seed")
			summaryPath, _ := cmd.Flags().GetString("summary")
			dbPath, _ := cmd.Flags().GetString("db")
			progressEvery, _ := cmd.Flags().GetInt("progress-every")

			exp, err := loadExperiment(cmd)
			if err != nil {
				return err
			}
			if randomSites > 0 {
				exp.RandomSites = config.DefaultRandomSites(randomSites)
			}
			if !cmd.Flags().Changed("seed") {
				seed = exp.Run.Seed
			}

			var summaries *report.SummaryWriter
			if summaryPath != "" {
				f, err := os.Create(summaryPath)
				if err != nil {
					return fmt.Errorf("creating summary file: %w", err)
				}
				defer f.Close()
				summaries = report.NewSummaryWriter(f)
			}
			var db *persistence.DB
			if dbPath != "" {
				if db, err = openDB(dbPath); err != nil {
					return err
				}
				defer db.Close()
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			_, stats, err := batch.Run(ctx, exp, batch.Options{
				Runs:      runs,
				Parallel:  parallel,
				FirstSeed: seed,
				OnResult: func(r batch.Result, stats *batch.Stats) error {
					if summaries != nil {
						if err := summaries.Write(exp.Colony, r.Summary); err != nil {
							return err
						}
					}
					if db != nil {
						if _, err := db.SaveRun(exp, r.Summary, r.Sim.Trace()); err != nil {
							return err
						}
					}
					if progressEvery > 0 && stats.Done%progressEvery == 0 {
						slog.Info("batch progress", "stats", stats.String())
					}
					return nil
				},
			})
			if stats != nil {
				fmt.Fprintln(cmd.OutOrStdout(), stats)
				fmt.Fprintf(cmd.OutOrStdout(), "mean recruitment acts: %.1f\n", stats.MeanRecruitmentActs())
			}
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Experiment YAML file (default: built-in three-nest experiment)")
	cmd.Flags().Int("runs", 100, "Number of runs")
	cmd.Flags().Int("parallel", 0, "Concurrent runs (0 = number of CPUs)")
	cmd.Flags().Int("random-sites", 0, "Replace the configured sites with n generated candidates")
	cmd.Flags().Int64("seed", 0, "Seed of the first run; later runs count up (0 = random)")
	cmd.Flags().String("summary", "", "Write the summary CSV to this file")
	cmd.Flags().String("db", "", "Store every run in this SQLite database")
	cmd.Flags().Int("progress-every", 10, "Log progress every n finished runs (0 = never)")
	return cmd
}
