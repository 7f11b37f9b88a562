package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:           "momopay",
		Short:         "Mobile-money payment client with durable idempotent submission",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override MOMOPAY_LOG_FORMAT (json|console)")

	rootCmd.AddCommand(
		serveCmd(opts),
		payCmd(opts),
		reconcileCmd(opts),
		pendingCmd(opts),
		transactionsCmd(opts),
		detailsCmd(opts),
		migrateCmd(opts),
	)
	return rootCmd
}
