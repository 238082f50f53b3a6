package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor edits page trees through a versioned, message driven core",
	Long: `Arbor keeps a document's component instance tree, turns pointer and
keyboard gestures into drag targets, and exchanges every change as messages
between the authoring surface and the rendering surface.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", config.DefaultPath, "Path to the configuration file")
	flags.String("store", "", "Document store backend: memory, file or redis")
	flags.String("dir", "", "Directory of the file store")
	flags.String("redis", "", "Redis address (implies --store=redis)")
	flags.String("templates", "", "Directory of loam templates")
	flags.Bool("debug", false, "Enable debug logging")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if v, _ := cmd.Flags().GetString("redis"); v != "" {
		cfg.Store.Backend = config.StoreRedis
		cfg.Store.Redis.Addr = v
	}
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.Backend = v
	}
	if v, _ := cmd.Flags().GetString("dir"); v != "" {
		cfg.Store.Dir = v
	}
	if v, _ := cmd.Flags().GetString("templates"); v != "" {
		cfg.Templates.Dir = v
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

// setup loads the configuration and assembles the workspace.
func setup(cmd *cobra.Command) (*cli.Stack, config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, nil, err
	}
	level, _ := cfg.Level()
	logger, err := logging.NewWriter(os.Stderr, level, logging.Format(cfg.Log.Format))
	if err != nil {
		return nil, cfg, nil, err
	}
	st, err := cli.Build(cfg, logger)
	if err != nil {
		return nil, cfg, nil, err
	}
	return st, cfg, logger, nil
}
