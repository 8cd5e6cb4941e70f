package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dominikbraun/graph/draw"
	"github.com/spf13/cobra"

	"spriteforge/internal/pipeline"
	"spriteforge/internal/textutil"
)

func newPipelineCommand(ctx *commandContext) *cobra.Command {
	pipelineCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Inspect pipeline definitions",
	}
	pipelineCmd.AddCommand(newPipelineListCommand(ctx))
	pipelineCmd.AddCommand(newPipelineShowCommand(ctx))
	return pipelineCmd
}

func newPipelineListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pipeline definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ids, err := pipeline.ListConfigs(cfg.Paths.PipelinesDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintf(out, "No pipelines in %s\n", cfg.Paths.PipelinesDir)
				return nil
			}
			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				p, err := pipeline.LoadConfig(id, cfg.Paths.PipelinesDir)
				if err != nil {
					rows = append(rows, []string{id, "", "", "", "invalid: " + err.Error()})
					continue
				}
				rows = append(rows, []string{
					id,
					strconv.Itoa(len(p.Stages)),
					strings.Join(p.ActionSet.Names(), ", "),
					strconv.Itoa(p.ActionSet.TotalFrames() * len(p.StyleProfile.Directions)),
					"ok",
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Stages", "Actions", "Frames", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newPipelineShowCommand(ctx *commandContext) *cobra.Command {
	var dot bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the stages and data flow of a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p, err := pipeline.LoadConfig(args[0], cfg.Paths.PipelinesDir)
			if err != nil {
				return err
			}
			g, err := pipeline.BuildDataFlow(p.Stages, pipeline.SlotSet{pipeline.SlotUploads: true})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dot {
				return draw.DOT(g, out)
			}

			profile := p.StyleProfile
			fmt.Fprintf(out, "%s: %dx%d frames, pivot (%d,%d), directions %s\n",
				p.ID, profile.FrameWidth, profile.FrameHeight, profile.Pivot.X, profile.Pivot.Y,
				strings.Join(profile.Directions, ", "))

			rows := make([][]string, 0, len(p.Stages))
			for i, stage := range p.Stages {
				inputs, err := pipeline.Inputs(g, stage.ID)
				if err != nil {
					return err
				}
				from := make([]string, 0, len(inputs))
				for _, in := range inputs {
					from = append(from, fmt.Sprintf("%s<-%s", in.Slot, in.From))
				}
				contract, _ := pipeline.ContractFor(stage.Type)
				produces := make([]string, 0, len(contract.Produces))
				for _, slot := range contract.Produces {
					produces = append(produces, string(slot))
				}
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					stage.ID,
					textutil.StageLabel(string(stage.Type)),
					textutil.Ternary(stage.Capability != "", stage.Capability, "-"),
					strings.Join(from, ", "),
					strings.Join(produces, ", "),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Stage", "Type", "Capability", "Inputs", "Produces"},
				rows,
				[]columnAlignment{alignRight},
			))

			order, err := pipeline.StageOrder(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Data-flow order: %s\n", strings.Join(order, " -> "))

			actionRows := make([][]string, 0, len(p.ActionSet.Actions))
			for _, name := range p.ActionSet.Names() {
				a := p.ActionSet.Actions[name]
				actionRows = append(actionRows, []string{name, strconv.Itoa(a.Frames), strconv.Itoa(a.FPS), yesNo(a.Loop), strconv.Itoa(len(a.Events))})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Action", "Frames", "FPS", "Loop", "Events"},
				actionRows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dot, "dot", false, "Print the data-flow graph in Graphviz DOT format")
	return cmd
}
