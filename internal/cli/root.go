// Package cli wires the command-line interface: headless runs and the live
// server.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/uprising/internal/config"
)

var (
	cfgPath string

	rootCmd = &cobra.Command{
		Use:   "uprising",
		Short: "Epstein civil violence simulator",
		Long: `uprising simulates emergent civil unrest: citizens and cops on a bounded
grid, each step deciding to move, rebel, or arrest. Rebellion is
self-reinforcing — visible rebels dilute perceived arrest risk and recruit
more rebels — until arrests and jail terms push the system back toward
quiescence.

Run a batch of steps and store the results:
  uprising run --steps 1000

Watch a live run over HTTP:
  uprising serve --port 8080`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))
			slog.SetDefault(logger)
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML parameter file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the YAML config (or defaults) and applies shared flag
// overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("legitimacy") {
		cfg.Legitimacy, _ = cmd.Flags().GetFloat64("legitimacy")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// simFlags registers the parameter overrides shared by run and serve.
func simFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("seed", 0, "random seed (0 = draw one)")
	cmd.Flags().Float64("legitimacy", 0.8, "regime legitimacy in [0, 1]")
}
