package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/rendis/routinekit/internal/diagram"
	"github.com/rendis/routinekit/internal/graph"
	"github.com/rendis/routinekit/internal/run"
)

type diagramOptions struct {
	Format string
	Output string
	BinDir string
	RunID  string
}

func newDiagramCmd(root *rootOptions) *cobra.Command {
	opts := &diagramOptions{}

	cmd := &cobra.Command{
		Use:   "diagram [file]",
		Short: "Draw a routine as ASCII, Mermaid, PNG or SVG",
		Long: `Diagram draws the column layout of a routine.

Pass a routine file, or --run to draw the routine of a stored run with its
progress marked. Binary formats (png, svg) require --output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			model, err := diagramModel(ctx, cmd, root, opts, args)
			if err != nil {
				return err
			}

			var data []byte
			switch opts.Format {
			case "ascii":
				data = []byte(diagram.RenderASCIIAuto(ctx, model, opts.BinDir))
			case "mermaid":
				data = []byte(diagram.RenderMermaid(model))
			case "cli":
				data = []byte(diagram.RenderMermaidForCLI(model))
			case "png":
				data, err = diagram.RenderGraphviz(ctx, model, graphviz.PNG)
			case "svg":
				data, err = diagram.RenderGraphviz(ctx, model, graphviz.SVG)
			default:
				return fmt.Errorf("unknown format %q (want ascii, mermaid, cli, png or svg)", opts.Format)
			}
			if err != nil {
				return err
			}

			if opts.Output == "" || opts.Output == "-" {
				if opts.Format == "png" {
					return fmt.Errorf("format png needs --output")
				}
				return writeAll(cmd.OutOrStdout(), data)
			}
			root.logger.Info("diagram written", "path", opts.Output, "format", opts.Format)
			return os.WriteFile(opts.Output, data, 0o644)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "ascii", "output format (ascii|mermaid|cli|png|svg)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the diagram to this file")
	cmd.Flags().StringVar(&opts.BinDir, "bin-dir", "", "directory holding the mermaid-ascii binary (ascii format)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "draw the routine of this stored run with its progress")
	return cmd
}

func diagramModel(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts *diagramOptions, args []string) (*diagram.DiagramModel, error) {
	if opts.RunID == "" {
		if len(args) == 0 {
			return nil, fmt.Errorf("a routine file or --run is required")
		}
		v, _, err := newValidator()
		if err != nil {
			return nil, err
		}
		r, err := readRoutine(ctx, cmd.InOrStdin(), args[0], v)
		if err != nil {
			return nil, err
		}
		return diagram.Build(graph.ComputeLayout(r), diagram.Options{Language: root.cfg.Language}), nil
	}

	st, err := root.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	rec, err := st.GetBookmark(ctx, opts.RunID)
	if err != nil {
		return nil, err
	}
	r, err := st.FetchRoutine(ctx, rec.RoutineID)
	if err != nil {
		return nil, err
	}
	sess, err := run.Restore(ctx, r, rec.Bookmark, run.Options{Language: rec.Language, Logger: root.logger})
	if err != nil {
		return nil, err
	}
	overlay := diagram.OverlayFromRun(sess.Tree(), sess.Cursor(), sess.History(), sess.Status())
	return diagram.Build(graph.ComputeLayout(sess.Routine()), diagram.Options{Language: rec.Language, Run: overlay}), nil
}

func writeAll(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}
