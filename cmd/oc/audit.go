package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"opsconsole/internal/app"
	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
)

func activityCmd() *cobra.Command {
	var opts engine.ActivityListOptions
	var typ string
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the activity feed, newest first",
		Long:  "Shows audit events newest first. Pass --before with the last id shown to page further back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Type = domain.ActivityType(typ)
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				events, err := ac.Engine.ListActivity(ctx, opts)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(events))
				for _, ev := range events {
					rows = append(rows, table.Row{ev.ID, ev.CreatedAt, ev.Type, ev.TaskID, ev.DecisionID, ev.Message})
				}
				return renderTable(cmd.OutOrStdout(), events, table.Row{"ID", "At", "Type", "Task", "Decision", "Message"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&opts.GoalID, "goal", "", "goal filter")
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "task filter")
	cmd.Flags().StringVar(&opts.DecisionID, "decision", "", "decision filter")
	cmd.Flags().StringVar(&typ, "type", "", "event type filter")
	cmd.Flags().Int64Var(&opts.Before, "before", 0, "only events with id below this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "max rows (<= 200)")
	cmd.MarkFlagsMutuallyExclusive("goal", "task")
	return cmd
}

func complianceCmd() *cobra.Command {
	compliance := &cobra.Command{Use: "compliance", Short: "Record and resolve policy violations"}

	var opts engine.ComplianceCreateOptions
	var severity string
	create := &cobra.Command{
		Use:   "create <message>",
		Short: "Record a compliance event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Message = args[0]
			opts.Severity = domain.ComplianceSeverity(severity)
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				ev, err := ac.Engine.CreateComplianceEvent(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), ev)
			})
		},
	}
	create.Flags().StringVar(&severity, "severity", string(domain.SeverityWarn), "info, warn, high or critical")
	create.Flags().StringVar(&opts.AttemptedAction, "attempted", "", "action the agent attempted")
	create.Flags().StringVar(&opts.PolicyRule, "rule", "", "policy rule that fired")
	create.Flags().StringVar(&opts.GoalID, "goal", "", "goal id")
	create.Flags().StringVar(&opts.TaskID, "task", "", "task id")
	create.Flags().StringVar(&opts.RunID, "run", "", "run id")
	create.Flags().StringVar(&opts.AgentID, "agent", "", "agent id")
	create.Flags().StringVar(&opts.GatewayID, "gateway", "", "gateway id")

	var resolved bool
	var filterSeverity string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List compliance events (unresolved by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				events, err := ac.Engine.ListComplianceEvents(ctx, resolved, domain.ComplianceSeverity(filterSeverity), limit)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(events))
				for _, ev := range events {
					rows = append(rows, table.Row{ev.ID, ev.Severity, ev.Message, deref(ev.AgentID), ev.CreatedAt})
				}
				return renderTable(cmd.OutOrStdout(), events, table.Row{"ID", "Severity", "Message", "Agent", "Created"}, rows)
			})
		},
	}
	list.Flags().BoolVar(&resolved, "resolved", false, "show resolved events instead")
	list.Flags().StringVar(&filterSeverity, "severity", "", "severity filter")
	list.Flags().IntVar(&limit, "limit", 50, "max rows (<= 200)")

	var note string
	resolve := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark a compliance event resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				ev, err := ac.Engine.ResolveComplianceEvent(ctx, args[0], note)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), ev)
			})
		},
	}
	resolve.Flags().StringVar(&note, "note", "", "resolution note")

	compliance.AddCommand(create, list, resolve)
	return compliance
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize tasks, pending decisions and open compliance events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				sum, err := ac.Engine.Status(ctx)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), sum)
				}
				statuses := make([]string, 0, len(sum.TaskCounts))
				for s := range sum.TaskCounts {
					statuses = append(statuses, string(s))
				}
				sort.Strings(statuses)
				rows := make([]table.Row, 0, len(statuses))
				for _, s := range statuses {
					rows = append(rows, table.Row{s, sum.TaskCounts[domain.TaskStatus(s)]})
				}
				if err := renderTable(cmd.OutOrStdout(), sum, table.Row{"Status", "Tasks"}, rows); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pending decisions: %d\nunresolved compliance events: %d\n", sum.PendingDecisions, sum.UnresolvedCompliance)
				return nil
			})
		},
	}
}
