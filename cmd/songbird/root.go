package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DrTrintignant/Songbird/internal/config"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFiles   []string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "songbird",
		Short:         "Play sound effects by description, with a Freesound remote and phrase bindings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file (defaults apply when empty)")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, ".env files loaded before the configuration")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override server.log_level")

	root.AddCommand(
		newServeCmd(opts),
		newPlayCmd(opts),
		newReplayCmd(opts),
		newBindMultipleCmd(opts),
		newListBoundCmd(opts),
		newUnbindCmd(opts),
		newUnbindAllCmd(opts),
		newListCachedCmd(opts),
		newTestCmd(opts),
	)
	return root
}

// loadConfig loads .env files and the configuration named by the flags.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found", o.configPath)
		}
		return nil, err
	}
	if o.logLevel != "" {
		lvl := config.LogLevel(o.logLevel)
		if !lvl.IsValid() {
			return nil, fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", o.logLevel)
		}
		cfg.Server.LogLevel = lvl
	}
	return cfg, nil
}

// setupLogging installs the default logger for cfg and returns the level
// variable and a closer for the log file.
func setupLogging(cfg *config.Config) (*slog.LevelVar, func()) {
	logger, level, closer := newLogger(cfg.Server.LogLevel, cfg.Server.LogFile)
	slog.SetDefault(logger)
	return level, func() {
		if closer != nil {
			_ = closer.Close()
		}
	}
}
