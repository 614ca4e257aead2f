// Package cmd holds the ledger-recon command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"
	"github.com/stmtrecon/ledger/ledger/config"
	"github.com/stmtrecon/ledger/ledger/internal/logging"
	"github.com/stmtrecon/ledger/ledger/pipeline"
)

var configPath string
var envFile string
var logLevel string

var rootCmd = &cobra.Command{
	Use:   "ledger-recon",
	Short: "Reconcile bank, card and receipt statements into one beancount ledger",
	Long: `ledger-recon reads statement exports of every configured source, drops
transactions recorded more than once, completes them with the matching
account and writes the result as beancount files.`,
	SilenceUsage: true,
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	cc.Init(&cc.Config{
		RootCmd:         rootCmd,
		Headings:        cc.HiCyan + cc.Bold + cc.Underline,
		Commands:        cc.HiYellow + cc.Bold,
		Example:         cc.Italic,
		ExecName:        cc.Bold,
		Flags:           cc.Bold,
		NoExtraNewlines: true,
		NoBottomNewline: true,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file, TOML or YAML (default $"+config.EnvConfigPath+").")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file (default .env).")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error.")
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromEnv(envFile)
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Logging.Level)
}

// newPipeline loads the configuration and builds the pipeline with it.
func newPipeline() (*pipeline.Pipeline, *config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg)
	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("unable to set up: %w", err)
	}
	return p, cfg, logger, nil
}
