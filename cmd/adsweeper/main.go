package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"AdSweeper/internal/app"
	"AdSweeper/internal/config"
	"AdSweeper/internal/infrastructure/relay"
	"AdSweeper/internal/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "adsweeper",
		Short:         "Sweeps stalled and rejected ad materials off the platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := logging.NewWithFile(cfg.Logging.Level, cfg.Logging.File)

			application := app.New(cfg, logger)
			if err := application.Run(context.Background()); err != nil {
				logger.Error("application stopped", "error", err)
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config/settings.yaml", "path to the settings file")
	cmd.AddCommand(newRelayCommand(&configPath))

	return cmd
}

func newRelayCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Run the debug forwarder in front of the ad platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := logging.NewWithFile(cfg.Logging.Level, cfg.Logging.File)

			server := relay.New(relay.Config{
				Port:   cfg.Relay.Port,
				Target: cfg.Relay.Target,
			}, logger)
			return server.Run()
		},
	}
}
