// Package main provides the pulse-agent binary: a standalone host for
// the capture engine, useful both as a reference integration and as a
// way to exercise the TCP protocol against a real GUI without embedding
// the library in a larger application.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/pulse/internal/logging"
	"github.com/coral-mesh/pulse/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pulse-agent",
		Short:         "pulse-agent - standalone host for the pulse capture engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(newServeCmd(&configPath))
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newServeCmd starts a Session and its TCP listener, runs the
// instrumented demo workload until interrupted, and shuts down cleanly.
func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run a demo instrumented workload with the capture server attached",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			logger := logging.New(logging.Config{
				Level:  cfg.LogLevel,
				Pretty: cfg.Pretty,
				Output: os.Stdout,
			})

			stop := make(chan struct{})
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sig
				close(stop)
			}()

			logger.Info().
				Int("port_range_start", 31313).
				Int("port_range_end", 31316).
				Msg("pulse-agent listening for capture clients")

			return runDemo(logger, cfg, stop)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("pulse-agent version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}
