package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Validate routines and store them in the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, _, err := newValidator()
			if err != nil {
				return err
			}
			st, err := root.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			for _, path := range args {
				r, err := readRoutine(ctx, cmd.InOrStdin(), path, v)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := v.ValidateRoutine(ctx, r); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := st.SaveRoutine(ctx, r); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				rec, err := st.GetRoutine(ctx, r.ID)
				if err != nil {
					return err
				}
				root.logger.Info("routine imported", "routine_id", r.ID, "version", rec.Version, "path", path)
				fmt.Fprintf(out, "imported %s (v%d)\n", r.ID, rec.Version)
			}
			return nil
		},
	}
}
