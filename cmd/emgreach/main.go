package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"emgreach/internal"
	"emgreach/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	rootCmd := &cobra.Command{
		Use:           "emgreach",
		Short:         "EMG-controlled reaching task with calibration and session export",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newSessionsCmd(),
		newExportCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(reportError(os.Stderr, err))
	}
}

// loadConfig reads the environment and builds the root logger.
func loadConfig() (*config.Config, *internal.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	internal.DefaultLogger = logger
	return cfg, logger, nil
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Calibrate and run one reaching session",
		Long: `Run one session: calibrate the four control channels, then present every
target until it is hit. The session log is exported when the last target is hit.

The device, canvas, timing and export targets are read from the environment
(see .env). Flags override the most common settings.

Example: emgreach run --device simulated --repetitions 1 --no-open`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			summary, err := runSession(cmd.Context(), cfg, opts, logger)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.device, "device", "", "Acquisition device: trigno|serial|simulated")
	cmd.Flags().IntVar(&opts.repetitions, "repetitions", 0, "Repetitions of each of the eight targets")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Target order seed (0 = time based)")
	cmd.Flags().BoolVar(&opts.noOpen, "no-open", false, "Do not open the export when the session ends")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "Log the task instead of serving the live viewer")
	cmd.Flags().BoolVar(&opts.waitViewer, "wait-viewer", false, "Wait for a browser to connect before calibrating")

	return cmd
}

func newSessionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return listSessions(cmd.Context(), cmd.OutOrStdout(), cfg, limit, logger)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list")
	return cmd
}

func newExportCmd() *cobra.Command {
	var outputDir string
	var formats []string

	cmd := &cobra.Command{
		Use:   "export [session-id]",
		Short: "Re-export a stored session to CSV and/or XLSX",
		Long: `Re-export a session from the session store.

Example: emgreach export 0190f5c4-2b1e-7d3a-9c1b-3f2e1d0c9b8a --format csv --out ./exports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.Export.OutputDir = outputDir
			}
			if len(formats) > 0 {
				cfg.Export.Formats = formats
			}
			return exportSession(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], logger)
		},
	}

	cmd.Flags().StringVar(&outputDir, "out", "", "Output directory (default OUTPUT_DIR)")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "Export formats: csv,xlsx (default EXPORT_FORMATS)")
	return cmd
}
