package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskgate/taskgate/pkg/app"
	"github.com/taskgate/taskgate/pkg/config"
	"github.com/taskgate/taskgate/pkg/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the taskgate server",
	Long: `Run the taskgate HTTP API, the event processor workers, and the
expiration listener until interrupted. The store must be reachable at
startup or the process exits with an error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		instance, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}

		return instance.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML configuration file")
}
