// Package main provides the CLI entry point for the agentic quality
// orchestrator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
	"github.com/anthropics/agentic-quality-orchestrator/internal/terminal"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := &cobra.Command{
		Use:   "aqo",
		Short: "Agentic quality orchestrator - scan, validate, ticket, and fix code issues",
		Long: `Run configured scan agents in parallel, validate their findings
skeptically, file tickets for approved issues, and drive automated fix
sessions to convergence.

Exit codes:
  0 - Completed (individual agent failures are reported, not fatal)
  2 - Error
  130 - Interrupted`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildVersionString(),
	}

	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newFixCmd())

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(exitCodeError); ok {
			return exitErr.code.Int()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return domain.ExitError.Int()
	}

	return domain.ExitOK.Int()
}

func buildVersionString() string {
	return fmt.Sprintf("aqo %s (%s)", version, commit)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *terminal.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr)
		logger.Log("Interrupted, shutting down...", terminal.StyleWarning)
		cancel()
	}()

	return ctx, cancel
}
