package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"readiness-sync/internal/config"
	"readiness-sync/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	verbose bool

	current *app
)

var rootCmd = &cobra.Command{
	Use:   "rlsync",
	Short: "Score ventures and sync readiness assessments",
	Long: `rlsync keeps readiness-level assessments in a local store and delivers
them to the assessment proxy.

The first submission of a venture creates a remote row; later submissions
update that same row until the assessment is restarted.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		level := "warn"
		if verbose {
			level = "debug"
		}
		zl, err := logger.New(cfg.Logging.Mode, level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		current, err = newApp(cfg, zl)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

func closeApp() error {
	if current == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), current.cfg.Sync.BeaconTimeout+time.Second)
	defer cancel()
	err := current.close(ctx)
	current = nil
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	ventureCmd.AddCommand(ventureNewCmd)
	ventureCmd.AddCommand(ventureListCmd)
	ventureCmd.AddCommand(ventureLoadCmd)
	ventureCmd.AddCommand(ventureDeleteCmd)
	ventureCmd.AddCommand(ventureRestartCmd)
	ventureCmd.AddCommand(ventureExportCmd)
	ventureCmd.AddCommand(ventureImportCmd)

	setCmd.AddCommand(setNameCmd)
	setCmd.AddCommand(setPortfolioCmd)
	setCmd.AddCommand(setHealthCmd)
	setCmd.AddCommand(setAdvisorCmd)

	lookupCmd.AddCommand(lookupNamesCmd)
	lookupCmd.AddCommand(lookupMineCmd)

	rootCmd.AddCommand(ventureCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		closeApp()
		os.Exit(1)
	}
}
