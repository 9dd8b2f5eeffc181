// Command sevensync pulls 7shifts workforce data into a local SQLite
// database for reporting and analysis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is stamped by the release build.
var version = "dev"

var (
	cfgFile  string
	logFile  string
	quietLog bool
)

var rootCmd = &cobra.Command{
	Use:   "sevensync",
	Short: "Sync 7shifts data into SQLite",
	Long: `sevensync incrementally pulls workforce data from the 7shifts API
into a local SQLite database.

Each run fetches companies, locations, departments, roles, users, wages,
shifts, time punches, receipts and daily sales reports for a configurable
date window, and upserts them so repeated runs are idempotent.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.sevensync.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "mirror log output into a rotating file")
	rootCmd.PersistentFlags().BoolVarP(&quietLog, "quiet", "q", false, "suppress progress logging on stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
