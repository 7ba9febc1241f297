// Package cmd implements the command line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/config"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/log"
)

var (
	flagDebug    bool
	flagJSONLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "deepseek-rag",
	Short: "Local RAG chat over your documents with DeepSeek reasoning",
	Long: `deepseek-rag answers questions grounded in your own documents.

Ingest PDFs, web pages, or Google Drive files into a local vector
index, then chat with a reasoning model that cites what it found.
When documents have nothing relevant, the agent can fall back to
web search.

Running without a subcommand starts the interactive chat.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "write logs as JSON")
}

// newLogger builds the process logger from the global flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: flagJSONLogs})
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load()
}
