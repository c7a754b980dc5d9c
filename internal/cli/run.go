package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/uprising/internal/engine"
	"github.com/talgya/uprising/internal/persistence"
)

// reportEvery controls the cadence of progress logs during a headless run.
const reportEvery = 100

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation to completion and store the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		dbPath, _ := cmd.Flags().GetString("db")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if steps == 0 {
			steps = cfg.MaxIters
		}
		if steps == 0 {
			return fmt.Errorf("unbounded run: set --steps or max_iters")
		}

		sim, err := engine.New(cfg)
		if err != nil {
			return err
		}

		var db *persistence.DB
		var runID string
		if dbPath != "" {
			if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
				return err
			}
			db, err = persistence.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			runID, err = db.CreateRun(cfg, sim.Seed)
			if err != nil {
				return err
			}
			slog.Info("run store opened", "path", dbPath, "run_id", runID)
		}

		completed := 0
		for completed < steps {
			if err := sim.Step(); err != nil {
				if errors.Is(err, engine.ErrTerminated) {
					break
				}
				return err
			}
			completed++

			if completed%reportEvery == 0 {
				st := sim.Latest()
				slog.Info("step report",
					"step", st.Step,
					"quiescent", st.Quiescent,
					"active", st.Active,
					"jailed", st.Jailed,
				)
			}
			if sim.Terminated() {
				break
			}
		}

		if db != nil {
			if err := db.SaveRun(runID, sim); err != nil {
				return fmt.Errorf("save run: %w", err)
			}
		}

		final := sim.Latest()
		arrests := 0
		for _, e := range sim.Events() {
			if e.Category == "arrest" {
				arrests++
			}
		}
		fmt.Printf("\nCompleted %s steps (seed %d).\n", humanize.Comma(int64(completed)), sim.Seed)
		fmt.Printf("Final: %s quiescent, %s active, %s jailed; %s arrests logged.\n",
			humanize.Comma(int64(final.Quiescent)),
			humanize.Comma(int64(final.Active)),
			humanize.Comma(int64(final.Jailed)),
			humanize.Comma(int64(arrests)))
		if runID != "" {
			fmt.Printf("Stored as run %s in %s\n", runID, dbPath)
		}
		return nil
	},
}

func init() {
	simFlags(runCmd)
	runCmd.Flags().Int("steps", 0, "steps to run (0 = max_iters)")
	runCmd.Flags().String("db", "data/uprising.db", "SQLite run store path (empty = no persistence)")
}
