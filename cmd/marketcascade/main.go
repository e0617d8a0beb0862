package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Command line flags shared across subcommands
var (
	configPath string
	logLevel   string
	symbols    []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "marketcascade",
		Short:   "Automated trading decision and execution engine",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to YAML configuration")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(buildBacktestCmd())
	rootCmd.AddCommand(buildPaperCmd())
	rootCmd.AddCommand(buildLiveCmd())
	rootCmd.AddCommand(buildDriftCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext cancels on SIGINT/SIGTERM for the long-running commands.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
