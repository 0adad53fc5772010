package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/routinekit/internal/graph"
	"github.com/rendis/routinekit/pkg/schema"
)

type layoutOptions struct {
	JSON   bool
	Strict bool
}

// layoutReport is the JSON form of a computed layout.
type layoutReport struct {
	RoutineID string        `json:"routine_id"`
	Changed   bool          `json:"changed"`
	Columns   [][]string    `json:"columns"`
	OffGraph  []string      `json:"off_graph,omitempty"`
	Status    schema.Status `json:"status"`
	Runnable  bool          `json:"runnable"`
}

func newLayoutCmd(root *rootOptions) *cobra.Command {
	opts := &layoutOptions{}

	cmd := &cobra.Command{
		Use:   "layout <file>",
		Short: "Show the column layout and structural status of a routine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, _, err := newValidator()
			if err != nil {
				return err
			}
			r, err := readRoutine(ctx, cmd.InOrStdin(), args[0], v)
			if err != nil {
				return err
			}

			l := graph.ComputeLayout(r)
			report := newLayoutReport(r, l)
			root.logger.Debug("layout computed",
				"routine_id", report.RoutineID,
				"columns", len(report.Columns),
				"status", string(l.Status.Level),
			)

			out := cmd.OutOrStdout()
			if opts.JSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printLayout(out, report)
			}

			if opts.Strict {
				if !report.Runnable {
					return fmt.Errorf("routine %s is %s", report.RoutineID, l.Status.Level)
				}
				return v.ValidateRoutine(ctx, l.Routine)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the layout as JSON")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail unless the routine is runnable and passes validation")
	return cmd
}

func newLayoutReport(r *schema.Routine, l *graph.Layout) layoutReport {
	report := layoutReport{
		Changed:  l.Changed,
		Columns:  make([][]string, 0, len(l.Columns)),
		Status:   l.Status,
		Runnable: l.Status.Runnable(),
	}
	if r != nil {
		report.RoutineID = r.ID
	}
	for _, col := range l.Columns {
		ids := make([]string, len(col))
		for i, n := range col {
			ids[i] = n.ID
		}
		report.Columns = append(report.Columns, ids)
	}
	for _, n := range l.OffGraph {
		report.OffGraph = append(report.OffGraph, n.ID)
	}
	return report
}

func printLayout(w io.Writer, report layoutReport) {
	fmt.Fprintf(w, "routine %s: %s\n", report.RoutineID, report.Status.Level)
	for i, col := range report.Columns {
		if len(col) == 0 {
			continue
		}
		fmt.Fprintf(w, "  column %d: %s\n", i, strings.Join(col, ", "))
	}
	if len(report.OffGraph) > 0 {
		fmt.Fprintf(w, "  not linked: %s\n", strings.Join(report.OffGraph, ", "))
	}
	for _, msg := range report.Status.Messages {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
	if report.Changed {
		fmt.Fprintln(w, "  layout was corrected; run cleanup to save the fix")
	}
}
