package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/househunt/internal/config"
	"github.com/talgya/househunt/internal/engine"
	"github.com/talgya/househunt/internal/report"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one emigration and print its outcome",
		Long: `Run a single house-hunting experiment until the colony has moved, the
tick cutoff is reached, or it is interrupted.

Examples:
  househunt run --seed 7
  househunt run --config three-nests.yaml --trace trace.csv --summary runs.csv
  househunt run --live --interval 20ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetInt64("seed")
			tracePath, _ := cmd.Flags().GetString("trace")
			summaryPath, _ := cmd.Flags().GetString("summary")
			dbPath, _ := cmd.Flags().GetString("db")
			live, _ := cmd.Flags().GetBool("live")
			interval, _ := cmd.Flags().GetDuration("interval")
			reportEvery, _ := cmd.Flags().GetUint64("report-every")

			exp, err := loadExperiment(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				seed = exp.Run.Seed
			}
			if tracePath != "" || dbPath != "" {
				exp.Run.Trace = true
			}

			sim, err := engine.NewSimulation(exp, seed)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			opts := engine.RunOptions{}
			if live {
				opts.Interval = interval
				opts.ReportEvery = max(reportEvery, 1)
				opts.OnReport = liveReporter(out)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			sum, runErr := sim.Run(ctx, opts)
			if runErr != nil && sum.Halt != engine.HaltCancelled {
				return runErr
			}

			fmt.Fprint(out, report.Summary(sum, sim.Colony.Size()))
			if err := writeRunOutputs(sim, sum, exp, tracePath, summaryPath, dbPath, out); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Experiment YAML file (default: built-in three-nest experiment)")
	cmd.Flags().Int64("seed", 0, "Random seed (0 = random; overrides the config)")
	cmd.Flags().String("trace", "", "Write the per-tick trace CSV to this file")
	cmd.Flags().String("summary", "", "Append the run summary CSV to this file")
	cmd.Flags().String("db", "", "Store the run in this SQLite database")
	cmd.Flags().Bool("live", false, "Pace ticks and redraw site quorums while running")
	cmd.Flags().Duration("interval", 50*time.Millisecond, "Wall-clock time per tick with --live")
	cmd.Flags().Uint64("report-every", 1, "Redraw every n ticks with --live")
	return cmd
}

// liveReporter redraws the quorum bars on terminals and logs a progress
// line otherwise.
func liveReporter(out io.Writer) func(*engine.Simulation) {
	if f, ok := out.(*os.File); ok && report.IsTerminal(f) {
		return func(sim *engine.Simulation) {
			fmt.Fprint(out, "\033[H\033[2J", report.Progress(sim, 40))
		}
	}
	return func(sim *engine.Simulation) {
		slog.Info("progress", "tick", sim.Tick(), "threshold", sim.Colony.QuorumThreshold(),
			"home_quorum", sim.Home.QuorumSize(), "recruitment_acts", sim.Colony.NumRecruitmentActs())
	}
}

func writeRunOutputs(sim *engine.Simulation, sum engine.Summary, exp *config.Experiment,
	tracePath, summaryPath, dbPath string, out io.Writer) error {
	if tracePath != "" {
		if err := writeFile(tracePath, false, func(w io.Writer) error {
			return report.WriteTrace(w, sim)
		}); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
		slog.Info("trace written", "path", tracePath, "rows", len(sim.Trace()))
	}
	if summaryPath != "" {
		if err := writeSummaries(summaryPath, exp, []engine.Summary{sum}); err != nil {
			return err
		}
	}
	if dbPath != "" {
		db, err := openDB(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		id, err := db.SaveRun(exp, sum, sim.Trace())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "stored as run %s\n", id)
	}
	return nil
}

// writeSummaries appends summary rows to path. The header is only written
// to a new or empty file.
func writeSummaries(path string, exp *config.Experiment, sums []engine.Summary) error {
	info, err := os.Stat(path)
	fresh := errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0)
	err = writeFile(path, true, func(w io.Writer) error {
		sw := report.NewSummaryWriter(w)
		if !fresh {
			sw.SkipHeader(len(sums[0].Sites))
		}
		for _, sum := range sums {
			if err := sw.Write(exp.Colony, sum); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

func writeFile(path string, appendTo bool, write func(io.Writer) error) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendTo {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
