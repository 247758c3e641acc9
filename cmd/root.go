package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/llmcapture/internal"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	dbPath     string
	configPath string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "llmcapture",
	Short: "Import and inspect captured LLM API traffic",
	Long: `A CLI tool that ingests raw captures of LLM API traffic (HTTP
request/response pairs recorded from a CLI agent talking to Gemini,
Anthropic, or OpenAI-compatible endpoints) and decomposes them into a
canonical, queryable model: sessions, turns, prompt components, and
response spans.

Features:
  • Provider and wire-protocol detection per request
  • Prompt decomposition into system/history/input/tool components
  • Response decomposition into text, code block, tool call and usage spans
  • Error classification for failed responses
  • Two turn-assignment algorithms (request-id grouping, legacy merge/split)
  • Atomic, idempotent session imports into SQLite

Quick Start:
  llmcapture import capture.json        # Import one capture
  llmcapture batch ./captures           # Import a directory
  llmcapture list                       # List imported sessions
  llmcapture show <session-id>          # Inspect a session`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the capture database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
}

// openStore loads config and opens the capture store shared by the
// subcommands.
func openStore() (*internal.Store, *internal.Config, error) {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}

	db, err := internal.OpenDatabase(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}

	store, err := internal.NewStore(db)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}
