package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iksnae/hdt-console/internal"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	apiURL  string
	envFile string
	homeDir string
	version string = "dev"
	commit  string = "unknown"
	date    string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hdt-console",
	Short: "Terminal client for the Human Digital Twin backend",
	Long: `A terminal client for the Human Digital Twin (HDT) monitoring backend.

It simulates physiological readings for a worker's digital twin, keeps a
live avatar that reacts to stress, and lets you chat with the twin's AI.

Features:
  • Register, log in and manage role profiles
  • Start and end monitoring sessions
  • Interactive dashboard with metrics, avatar panel and chat
  • Watch a session's live event stream
  • Export chat transcripts (JSONL, Markdown, YAML, JSON)
  • Spool and re-submit metric uploads that failed

Quick Start:
  hdt-console register --username ana --email ana@example.com
  hdt-console dashboard                  # Pick a role, press s to start
  hdt-console chat history 12 --format md`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		internal.PrintError(fmt.Sprintf("Error: %v", err))
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API base URL (overrides HDT_API_URL)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file to load before the environment")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "State directory for credentials, spool and logs (overrides HDT_HOME)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
