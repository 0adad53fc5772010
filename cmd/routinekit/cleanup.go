package main

import (
	"github.com/spf13/cobra"

	"github.com/rendis/routinekit/internal/graph"
)

func newCleanupCmd(root *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "cleanup <file>",
		Short: "Repair the layout of a routine",
		Long: `Cleanup rewrites a routine so that its layout needs no correction.

An empty routine is seeded with a linked Start and End node. Otherwise dangling
links are dropped, the rows of each column are renumbered from 0 and every node
without a successor is linked to a new End node.
The result is written to --output, or to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, _, err := newValidator()
			if err != nil {
				return err
			}
			r, err := readRoutine(cmd.Context(), cmd.InOrStdin(), args[0], v)
			if err != nil {
				return err
			}

			cleaned := graph.CleanUp(r, graph.UUIDs())
			if len(r.Nodes) == 0 {
				cleaned = graph.Seed(r, graph.UUIDs())
			}
			root.logger.Info("routine cleaned",
				"routine_id", cleaned.ID,
				"nodes", len(cleaned.Nodes),
				"links", len(cleaned.NodeLinks),
			)
			return writeRoutine(cmd.OutOrStdout(), output, cleaned)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the cleaned routine to this file (.json, .yaml)")
	return cmd
}
