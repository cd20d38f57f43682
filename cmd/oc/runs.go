package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"opsconsole/internal/app"
	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
)

func runCmd() *cobra.Command {
	run := &cobra.Command{Use: "run", Short: "Track agent runs"}

	var opts engine.RunCreateOptions
	create := &cobra.Command{
		Use:   "create <agent-id>",
		Short: "Register a queued run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.AgentID = args[0]
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				r, err := ac.Engine.CreateRun(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), r)
			})
		},
	}
	create.Flags().StringVar(&opts.Objective, "objective", "", "what the run is meant to do")
	create.Flags().StringVar(&opts.TaskID, "task", "", "task id")
	create.Flags().StringVar(&opts.GoalID, "goal", "", "goal id")
	create.Flags().StringVar(&opts.GatewayID, "gateway", "", "gateway id")
	create.Flags().StringVar(&opts.RelatedDecisionID, "decision", "", "related decision id")

	var filter engine.RunListOptions
	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = domain.RunStatus(status)
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				runs, err := ac.Engine.ListRuns(ctx, filter)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, table.Row{r.ID, r.AgentID, r.Status, deref(r.TaskID), r.CreatedAt})
				}
				return renderTable(cmd.OutOrStdout(), runs, table.Row{"ID", "Agent", "Status", "Task", "Created"}, rows)
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "status filter")
	list.Flags().StringVar(&filter.AgentID, "agent", "", "agent filter")
	list.Flags().StringVar(&filter.TaskID, "task", "", "task filter")
	list.Flags().IntVar(&filter.Limit, "limit", 50, "max rows (<= 200)")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				r, err := ac.Engine.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), r)
			})
		},
	}

	var summary, runErr string
	setStatus := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Report run progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				r, err := ac.Engine.SetRunStatus(ctx, engine.RunStatusOptions{
					ID:      args[0],
					Status:  domain.RunStatus(args[1]),
					Summary: summary,
					Error:   runErr,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), r)
			})
		},
	}
	setStatus.Flags().StringVar(&summary, "summary", "", "progress summary")
	setStatus.Flags().StringVar(&runErr, "error", "", "failure detail")

	run.AddCommand(create, list, show, setStatus)
	return run
}

// parseArtifacts reads "kind=ref" pairs.
func parseArtifacts(raw []string) ([]domain.Artifact, error) {
	out := make([]domain.Artifact, 0, len(raw))
	for _, r := range raw {
		kind, ref, ok := strings.Cut(r, "=")
		kind, ref = strings.TrimSpace(kind), strings.TrimSpace(ref)
		if !ok || kind == "" || ref == "" {
			return nil, fmt.Errorf("invalid --artifact %q (want kind=ref)", r)
		}
		out = append(out, domain.Artifact{Kind: kind, Ref: ref})
	}
	return out, nil
}

func outputCmd() *cobra.Command {
	output := &cobra.Command{Use: "output", Short: "Record deliverables"}

	var opts engine.OutputCreateOptions
	var typ string
	var artifacts []string
	create := &cobra.Command{
		Use:   "create <title>",
		Short: "Record an output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			opts.Title = args[0]
			opts.Type = domain.OutputType(typ)
			if opts.Artifacts, err = parseArtifacts(artifacts); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				o, err := ac.Engine.CreateOutput(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), o)
			})
		},
	}
	create.Flags().StringVar(&typ, "type", "other", "research, doc, code_diff, summary, linkset, image, video, architecture, decision or other")
	create.Flags().StringVar(&opts.GoalID, "goal", "", "goal id")
	create.Flags().StringVar(&opts.TaskID, "task", "", "task id")
	create.Flags().StringVar(&opts.Summary, "summary", "", "summary")
	create.Flags().StringArrayVar(&artifacts, "artifact", nil, "artifact as kind=ref (repeatable)")

	var goalID, filterType string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List outputs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				outputs, err := ac.Engine.ListOutputs(ctx, goalID, domain.OutputType(filterType), limit)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(outputs))
				for _, o := range outputs {
					rows = append(rows, table.Row{o.ID, o.Type, o.Title, deref(o.GoalID), o.CreatedAt})
				}
				return renderTable(cmd.OutOrStdout(), outputs, table.Row{"ID", "Type", "Title", "Goal", "Created"}, rows)
			})
		},
	}
	list.Flags().StringVar(&goalID, "goal", "", "goal filter")
	list.Flags().StringVar(&filterType, "type", "", "type filter")
	list.Flags().IntVar(&limit, "limit", 50, "max rows (<= 200)")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				o, err := ac.Engine.GetOutput(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), o)
			})
		},
	}

	output.AddCommand(create, list, show)
	return output
}
