package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskgate/taskgate/pkg/log"
	"github.com/taskgate/taskgate/pkg/stub"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taskgate-stub",
	Short: "Local stub scheduler for taskgate development",
	Long: `Run a stand-in for the external scheduler. It accepts every task
submission and cancellation taskgate sends, records them in a local
BoltDB file, and exposes them on GET /tasks for inspection.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		dbPath, _ := cmd.Flags().GetString("db")

		log.Init(log.Config{Level: log.InfoLevel, JSONOutput: false})

		server, err := stub.NewServer(addr, dbPath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serverErr := make(chan error, 1)
		go func() {
			serverErr <- server.Start()
		}()

		select {
		case <-ctx.Done():
		case err := <-serverErr:
			return err
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Taskgate stub scheduler version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
	rootCmd.Flags().String("addr", "0.0.0.0:9000", "Listen address")
	rootCmd.Flags().String("db", "taskgate-stub.db", "Path to the submission database file")
}
