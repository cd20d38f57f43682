package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"opsconsole/internal/app"
	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
)

func decisionCmd() *cobra.Command {
	decision := &cobra.Command{
		Use:   "decision",
		Short: "Review and resolve decisions",
		Long:  "Decisions are human approvals requested by agents or opened when a task waits on a decision.",
	}
	decision.AddCommand(decisionCreateCmd(), decisionListCmd(), decisionShowCmd(), decisionResolveCmd())
	return decision
}

// parseOptions reads "key=label" pairs.
func parseOptions(raw []string) ([]domain.DecisionOption, error) {
	out := make([]domain.DecisionOption, 0, len(raw))
	for _, r := range raw {
		key, label, ok := strings.Cut(r, "=")
		key, label = strings.TrimSpace(key), strings.TrimSpace(label)
		if !ok || key == "" || label == "" {
			return nil, fmt.Errorf("invalid --option %q (want key=label)", r)
		}
		out = append(out, domain.DecisionOption{Key: key, Label: label})
	}
	return out, nil
}

func decisionCreateCmd() *cobra.Command {
	var opts engine.DecisionCreateOptions
	var typ string
	var options, commands []string
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Open a pending decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			opts.Title = args[0]
			opts.Type = domain.DecisionType(typ)
			if opts.Options, err = parseOptions(options); err != nil {
				return err
			}
			if len(commands) > 0 {
				opts.ExecutionPreview = &domain.ExecutionPreview{Commands: commands}
			}
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				d, err := ac.Engine.CreateDecision(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), d)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(domain.DecisionNeeded), "decision type")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.GoalID, "goal", "", "goal id")
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "task id")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id")
	cmd.Flags().StringVar(&opts.AgentID, "agent", "", "requesting agent id")
	cmd.Flags().StringArrayVar(&options, "option", nil, "option as key=label (repeatable)")
	cmd.Flags().StringVar(&opts.Recommendation, "recommend", "", "recommended option key")
	cmd.Flags().StringArrayVar(&commands, "command", nil, "command the approval would allow (repeatable)")
	return cmd
}

func decisionListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List decisions (pending by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				decisions, err := ac.Engine.ListDecisions(ctx, domain.DecisionStatus(status), limit)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(decisions))
				for _, d := range decisions {
					rows = append(rows, table.Row{d.ID, d.Title, d.Type, d.Status, deref(d.TaskID), d.CreatedAt})
				}
				return renderTable(cmd.OutOrStdout(), decisions, table.Row{"ID", "Title", "Type", "Status", "Task", "Created"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (default pending)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows (<= 200)")
	return cmd
}

func decisionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				d, err := ac.Engine.GetDecision(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), d)
			})
		},
	}
}

func decisionResolveCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "resolve <id> <approve|reject|request_changes>",
		Short: "Resolve a pending decision",
		Long: `Resolves a pending decision as the acting user (--user, else the local user).
approve resumes a task waiting on it, reject blocks that task and appends the note, request_changes leaves the task alone.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := domain.ParseResolveAction(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				u, err := ac.ResolveUser(ctx, viper.GetString("user"))
				if err != nil {
					return err
				}
				id, err := ac.Engine.ResolveDecision(ctx, args[0], action, u.ID, note)
				if err != nil {
					return err
				}
				d, err := ac.Engine.GetDecision(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), d)
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "resolution note")
	return cmd
}
