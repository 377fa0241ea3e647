package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/househunt/internal/api"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over HTTP",
		Long: `Serve the run database as JSON under /api/v1.

POST /api/v1/runs launches a run from a YAML experiment body. It is only
enabled when HOUSEHUNT_ADMIN_KEY is set, and requires that key as a bearer
token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			port, _ := cmd.Flags().GetInt("port")
			runTimeout, _ := cmd.Flags().GetDuration("run-timeout")
			launchRate, _ := cmd.Flags().GetInt("launch-rate")

			db, err := openDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			srv := &api.Server{
				DB:         db,
				Port:       port,
				AdminKey:   os.Getenv("HOUSEHUNT_ADMIN_KEY"),
				RunTimeout: runTimeout,
			}
			if launchRate > 0 {
				srv.LaunchLimiter = api.NewRateLimiter(launchRate, time.Hour)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().String("db", "data/househunt.db", "SQLite run database")
	cmd.Flags().Int("port", 8080, "HTTP port")
	cmd.Flags().Duration("run-timeout", 2*time.Minute, "Wall-clock bound on runs launched over HTTP")
	cmd.Flags().Int("launch-rate", 30, "Launches allowed per client per hour (0 = unlimited)")
	return cmd
}
