// Package cli implements the buscluster command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/buscluster/internal/config"
	"github.com/banshee-data/buscluster/internal/monitoring"
	"github.com/banshee-data/buscluster/internal/version"
)

// RootOptions holds global flags.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

// app carries state initialised before any subcommand runs.
type app struct {
	opts RootOptions
	cfg  *config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "buscluster",
		Short: "Detect bus clusters in telemetry snapshots and score their risk",
		Long: "buscluster groups bus positions with DBSCAN and scores every cluster\n" +
			"by speed, crowding and size. It runs as an HTTP and gRPC service or as\n" +
			"a one-shot command over a JSON snapshot.",
		Version: version.Get().String(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.opts.ConfigPath, "config", "c", "", "config file (.yaml, .yml or .json)")
	pf.StringVar(&a.opts.LogLevel, "log-level", "", "override log level (debug, info, warn, error)")
	pf.StringVar(&a.opts.LogFormat, "log-format", "", "override log format (console, json)")

	cmd.AddCommand(
		newServeCmd(a),
		newDetectCmd(a),
		newPlotCmd(a),
		newMigrateCmd(a),
		newRunsCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// init loads configuration and installs the logger.
func (a *app) init() error {
	cfg, err := config.Load(a.opts.ConfigPath)
	if err != nil {
		return err
	}
	if a.opts.LogLevel != "" {
		cfg.Log.Level = a.opts.LogLevel
	}
	if a.opts.LogFormat != "" {
		cfg.Log.Format = a.opts.LogFormat
	}

	logger, err := monitoring.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	monitoring.UseZap(logger)
	a.cfg = cfg
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
