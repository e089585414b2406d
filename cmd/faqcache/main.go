// Package main is the faqcache CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/cli"
	"github.com/hyperjump/faqcache/internal/config"
	"github.com/hyperjump/faqcache/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/faqcache/config.yaml"
	defaultServerURL  = "http://localhost:8001"
)

var (
	configPath string
	debugFlag  bool
	serverURL  string
	outputFlag string

	cfg          *config.Config
	resolvedPath string
	output       cli.OutputFormat
)

var rootCmd = &cobra.Command{
	Use:   "faqcache",
	Short: "Semantic FAQ cache: answer repeated questions from a vetted question/answer store",
	Long: `faqcache answers incoming questions from a store of previously vetted
question/answer pairs, using vector similarity followed by a relevance check.

Commands talk to a running server (--server) or, with --server="", open the
store directly.

Example usage:
  faqcache server                              # Start the HTTP server
  faqcache query how do I reset my password    # Look up a cached answer
  faqcache reconstruct --corpus faq.xlsx       # Rebuild the cache from a spreadsheet`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		output, err = cli.ParseOutputFormat(outputFlag)
		if err != nil {
			return err
		}
		cfg, resolvedPath, err = loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if debugFlag {
			cfg.Debug = true
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "faqcache %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL, `server base URL; "" opens the store directly`)
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "text", "output format: text or json")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory; if that exists it is used. A missing default
// config falls back to built-in defaults so the CLI works without installation.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// newLogger builds the process logger from the loaded config.
func newLogger() (*zap.Logger, error) {
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// joinArgs joins positional args with spaces so multi-word questions work the same
// with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// requestTimeout bounds a single CLI request; reconstruction gets the corpus timeout.
func requestTimeout(reconstruct bool) time.Duration {
	if reconstruct && cfg.Corpus.Timeout > 0 {
		return cfg.Corpus.Timeout + 30*time.Second
	}
	return 2 * time.Minute
}

// openBackend returns a client for the configured server, or the engine itself in
// direct mode. The caller must Close it.
func openBackend(ctx context.Context) (backend, error) {
	if serverURL != "" {
		return &remoteBackend{client: cli.NewClient(serverURL, requestTimeout(true))}, nil
	}
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &localBackend{Components: comps, logger: logger}, nil
}
