package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stationhub/internal/app"
	"stationhub/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "stationctl",
	Short: "StationHub maintenance tool",
	Long: `stationctl imports stations into the directory and runs the maintenance
jobs (rescoring, stream probes, artwork) outside the API server.

Configuration is read the same way as the API server: config.yaml in the
working directory or STATIONHUB_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Override log.level (debug|info|warn|error)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(importCmd, recalculateCmd, probeCmd, imagesCmd, seedAdminCmd)
}

// withApp loads configuration, opens the services and runs fn with a context
// canceled on SIGINT/SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	cfg.SetupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
