// Package cmd implements the repolens command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/draylor/repolens/internal/config"
	"github.com/draylor/repolens/internal/engine"
	"github.com/draylor/repolens/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "repolens",
	Short: "Incremental code index and hybrid retrieval for a remote repository",
	Long: `repolens keeps a searchable index of a remote repository synchronized
with its head commit and answers natural-language questions with merged
keyword and semantic search results.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "repolens.yaml", "path to the configuration file")
}

// setup loads configuration, configures logging on stderr, and assembles the
// engine. Stdout stays clean for command output and the MCP protocol.
func setup() (*engine.Engine, *config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := logging.Setup(os.Stderr, cfg.Logging.Level)

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return eng, cfg, logger, nil
}
