package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rendis/routinekit/internal/expressions"
	"github.com/rendis/routinekit/internal/logging"
	"github.com/rendis/routinekit/internal/store"
	"github.com/rendis/routinekit/internal/validation"
)

// rootOptions holds global flags and the resolved configuration.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
	DBPath     string
	Language   string

	cfg    Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{})
}

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "routinekit",
		Short:         "Lay out, validate and walk through routine graphs",
		Long:          "routinekit arranges routine graphs into columns, repairs them, renders diagrams, stores them in a libSQL database and serves them to agents over MCP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			// Layer 4: flags.
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = opts.LogLevel
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = opts.DBPath
			}
			if cmd.Flags().Changed("lang") {
				cfg.Language = opts.Language
			}
			opts.cfg = cfg
			opts.logger = logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "settings file (default ~/.routinekit/settings.toml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "routine database path")
	cmd.PersistentFlags().StringVar(&opts.Language, "lang", "en", "preferred translation language")

	cmd.AddCommand(newLayoutCmd(opts))
	cmd.AddCommand(newCleanupCmd(opts))
	cmd.AddCommand(newStepsCmd(opts))
	cmd.AddCommand(newDiagramCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// openStore opens and migrates the configured database, creating its directory.
func (o *rootOptions) openStore(ctx context.Context) (*store.LibSQLStore, error) {
	if dir := filepath.Dir(o.cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	s, err := store.NewLibSQLStore("file:" + o.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// newValidator builds the boundary validator with every condition engine.
func newValidator() (*validation.RoutineValidator, *expressions.Registry, error) {
	conditions, err := expressions.NewRegistry()
	if err != nil {
		return nil, nil, err
	}
	v, err := validation.NewRoutineValidator(conditions)
	if err != nil {
		return nil, nil, err
	}
	return v, conditions, nil
}
