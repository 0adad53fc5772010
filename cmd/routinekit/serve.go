package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/routinekit/internal/streaming"
	"github.com/rendis/routinekit/pkg/mcp"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the routine tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			v, conditions, err := newValidator()
			if err != nil {
				return err
			}
			st, err := root.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := mcp.NewRoutineServer(mcp.RoutineServerDeps{
				Store:      st,
				Hub:        streaming.NewMemoryHub(),
				Validator:  v,
				Conditions: conditions,
				Language:   root.cfg.Language,
				Retry:      root.cfg.RetryPolicy(),
				Logger:     root.logger,
			})
			root.logger.Info("serving", "db", root.cfg.DBPath, "language", root.cfg.Language)
			return srv.Serve(ctx)
		},
	}
}
