package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/routinekit/internal/run"
)

type stepsOptions struct {
	Depth int
	JSON  bool
}

func newStepsCmd(root *rootOptions) *cobra.Command {
	opts := &stepsOptions{}

	cmd := &cobra.Command{
		Use:   "steps <file>",
		Short: "Print the step tree a run of the routine walks through",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, _, err := newValidator()
			if err != nil {
				return err
			}
			r, err := readRoutine(cmd.Context(), cmd.InOrStdin(), args[0], v)
			if err != nil {
				return err
			}

			tree, err := run.NewBuilder(run.NewLocalizer(root.cfg.Language)).Build(r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.JSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tree)
			}

			depth := root.cfg.MaxPathDepth
			if cmd.Flags().Changed("depth") && opts.Depth > 0 && opts.Depth < depth {
				depth = opts.Depth
			}
			fmt.Fprintln(out, titleOr(tree.Title, tree.RoutineID))
			printSteps(out, tree, run.Path{}, depth)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "print at most this many levels (default max_path_depth)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the step tree as JSON")
	return cmd
}

// printSteps writes one line per step below list, prefixed with its path.
func printSteps(w io.Writer, list *run.RoutineListStep, at run.Path, depth int) {
	if len(at) >= depth {
		if n := len(list.Steps); n > 0 {
			fmt.Fprintf(w, "%s  ... %d more\n", strings.Repeat("  ", len(at)+1), n)
		}
		return
	}
	for i, s := range list.Steps {
		p := at.Child(i)
		indent := strings.Repeat("  ", len(p))
		fmt.Fprintf(w, "%s%-*s %s\n", indent, 8, p.String(), describeStep(s))
		if sub, ok := s.(*run.RoutineListStep); ok {
			printSteps(w, sub, p, depth)
		}
	}
}

func describeStep(s run.Step) string {
	switch s := s.(type) {
	case *run.RoutineListStep:
		order := "any order"
		if s.IsOrdered {
			order = "in order"
		}
		return fmt.Sprintf("%s (%d steps, %s)", titleOr(s.Title, s.NodeID), len(s.Steps), order)
	case *run.SubroutineStep:
		var tags []string
		if s.IsOptional {
			tags = append(tags, "optional")
		}
		if s.NeedsHydration() {
			tags = append(tags, fmt.Sprintf("loads %s", s.RoutineID()))
		}
		line := titleOr(s.Title, s.ItemID)
		if len(tags) > 0 {
			line += " [" + strings.Join(tags, ", ") + "]"
		}
		return line
	case *run.DecisionStep:
		targets := make([]string, len(s.Links))
		for i, l := range s.Links {
			targets[i] = l.ToID
		}
		return fmt.Sprintf("? %s -> %s", titleOr(s.Title, s.NodeID), strings.Join(targets, " | "))
	}
	return ""
}

func titleOr(title, id string) string {
	if title != "" {
		return title
	}
	return id
}
