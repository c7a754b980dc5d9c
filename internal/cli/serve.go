package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/uprising/internal/api"
	"github.com/talgya/uprising/internal/engine"
	"github.com/talgya/uprising/internal/persistence"
)

// autoSaveEvery is the step cadence of background saves in serve mode.
const autoSaveEvery = 50

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a live simulation with the HTTP observation API",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		dbPath, _ := cmd.Flags().GetString("db")
		interval, _ := cmd.Flags().GetDuration("interval")
		speed, _ := cmd.Flags().GetFloat64("speed")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
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

		eng := engine.NewEngine(sim)
		eng.Speed = speed
		eng.Interval = interval
		if db != nil {
			eng.OnStep = func(step int) {
				if step%autoSaveEvery != 0 {
					return
				}
				if err := db.SaveRun(runID, sim); err != nil {
					slog.Error("auto-save failed", "error", err)
				}
			}
		}

		adminKey := os.Getenv("UPRISING_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("UPRISING_ADMIN_KEY not set — admin POST endpoints will be disabled")
		}
		server := &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			RunID:    runID,
			Port:     port,
			AdminKey: adminKey,
		}
		server.Start()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			slog.Info("received signal, shutting down", "signal", sig)
			eng.Stop()
		}()

		fmt.Printf("Simulation live on http://localhost:%d/api/v1/status (Ctrl+C to stop)\n", port)
		eng.Run()

		if db != nil {
			slog.Info("final save")
			if err := db.SaveRun(runID, sim); err != nil {
				slog.Error("final save failed", "error", err)
			}
		}
		return nil
	},
}

func init() {
	simFlags(serveCmd)
	serveCmd.Flags().Int("port", 8080, "HTTP API port")
	serveCmd.Flags().String("db", "data/uprising.db", "SQLite run store path (empty = no persistence)")
	serveCmd.Flags().Duration("interval", time.Second, "base step interval")
	serveCmd.Flags().Float64("speed", 1.0, "speed multiplier (0 = start paused)")
}
