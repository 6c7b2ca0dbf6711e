// Package main implements dctl, a command-line client for the decisiond
// HTTP API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options holds the persistent flags.
type options struct {
	server string
	user   string
	json   bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "dctl",
		Short: "CLI for the decisiond server",
		Long: `dctl talks to a running decisiond server. It captures decisions,
records reflections and shows replay, daily guidance and weekly insights.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("DECISIOND_URL", "http://localhost:8000"), "decisiond server URL")
	root.PersistentFlags().StringVar(&opts.user, "user", "", "user id (server default when empty)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON responses")

	root.AddCommand(
		newCaptureCmd(opts),
		newListCmd(opts),
		newReflectCmd(opts),
		newReplayCmd(opts),
		newAlternativeCmd(opts),
		newDailyCmd(opts),
		newInsightsCmd(opts),
		newPrinciplesCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
