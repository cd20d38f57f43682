package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"opsconsole/internal/app"
	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
)

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks belong to a goal and optionally sit on a board. 'transition' applies the lifecycle rules; 'move' is the unchecked board-column move.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskTransitionCmd())
	task.AddCommand(taskMoveCmd())
	task.AddCommand(taskOverdueCmd())
	return task
}

func taskRows(tasks []domain.Task) []table.Row {
	rows := make([]table.Row, 0, len(tasks))
	for _, t := range tasks {
		assignee := ""
		if t.Assignee != nil {
			assignee = t.Assignee.Kind() + ":" + t.Assignee.Ref()
		}
		rows = append(rows, table.Row{t.ID, t.Title, t.Status, t.Priority, assignee, deref(t.DueAt)})
	}
	return rows
}

var taskHeader = table.Row{"ID", "Title", "Status", "Priority", "Assignee", "Due"}

func assigneeFromFlags(userID, agentID string) *domain.AssigneeRef {
	switch {
	case userID != "" && agentID != "":
		// both set: let validation report the mismatch
		return &domain.AssigneeRef{Type: "human", UserID: userID, AgentID: agentID}
	case userID != "":
		return &domain.AssigneeRef{Type: "human", UserID: userID}
	case agentID != "":
		return &domain.AssigneeRef{Type: "agent", AgentID: agentID}
	}
	return nil
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var status, priority, assigneeUser, assigneeAgent string
	var noBoard bool
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task (on the goal's default board unless --board or --no-board)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Title = args[0]
			opts.Status = domain.TaskStatus(status)
			opts.Priority = domain.Priority(priority)
			opts.Assignee = assigneeFromFlags(assigneeUser, assigneeAgent)
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				if opts.BoardID == "" && !noBoard {
					b, err := ac.Engine.DefaultBoard(ctx, opts.GoalID)
					if err != nil && !domain.IsNotFound(err) {
						return err
					}
					opts.BoardID = b.ID
				}
				t, err := ac.Engine.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.GoalID, "goal", "", "goal id")
	cmd.Flags().StringVar(&opts.BoardID, "board", "", "board id")
	cmd.Flags().BoolVar(&noBoard, "no-board", false, "leave the task off any board")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default todo)")
	cmd.Flags().StringVar(&priority, "priority", "", "p1, p2 or p3 (default p2)")
	cmd.Flags().StringVar(&opts.DueAt, "due", "", "due time, RFC 3339")
	cmd.Flags().StringVar(&assigneeUser, "assignee-user", "", "assign to a user id")
	cmd.Flags().StringVar(&assigneeAgent, "assignee-agent", "", "assign to an agent id")
	_ = cmd.MarkFlagRequired("goal")
	cmd.MarkFlagsMutuallyExclusive("board", "no-board")
	return cmd
}

func taskListCmd() *cobra.Command {
	var opts engine.TaskListOptions
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Status = domain.TaskStatus(status)
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				tasks, err := ac.Engine.ListTasks(ctx, opts)
				if err != nil {
					return err
				}
				return renderTable(cmd.OutOrStdout(), tasks, taskHeader, taskRows(tasks))
			})
		},
	}
	cmd.Flags().StringVar(&opts.GoalID, "goal", "", "goal filter")
	cmd.Flags().StringVar(&opts.BoardID, "board", "", "board filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().BoolVar(&opts.Unassigned, "unassigned", false, "only tasks on no board")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "max rows (<= 200)")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				t, err := ac.Engine.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, description, goal, board, status, priority, due, assigneeUser, assigneeAgent string
	var clearAssignee bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Patch task fields (a --status here skips the lifecycle rules)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{
				ID:            args[0],
				Title:         optionalFlag(cmd, "title", title),
				Description:   optionalFlag(cmd, "description", description),
				GoalID:        optionalFlag(cmd, "goal", goal),
				BoardID:       optionalFlag(cmd, "board", board),
				DueAt:         optionalFlag(cmd, "due", due),
				Assignee:      assigneeFromFlags(assigneeUser, assigneeAgent),
				ClearAssignee: clearAssignee,
			}
			if cmd.Flags().Changed("status") {
				s := domain.TaskStatus(status)
				opts.Status = &s
			}
			if cmd.Flags().Changed("priority") {
				p := domain.Priority(priority)
				opts.Priority = &p
			}
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				t, err := ac.Engine.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&goal, "goal", "", "goal id")
	cmd.Flags().StringVar(&board, "board", "", "board id (empty to take off the board)")
	cmd.Flags().StringVar(&status, "status", "", "status, written as is")
	cmd.Flags().StringVar(&priority, "priority", "", "p1, p2 or p3")
	cmd.Flags().StringVar(&due, "due", "", "due time, RFC 3339 (empty clears)")
	cmd.Flags().StringVar(&assigneeUser, "assignee-user", "", "assign to a user id")
	cmd.Flags().StringVar(&assigneeAgent, "assignee-agent", "", "assign to an agent id")
	cmd.Flags().BoolVar(&clearAssignee, "clear-assignee", false, "remove the assignee")
	return cmd
}

func taskTransitionCmd() *cobra.Command {
	var opts engine.TransitionOptions
	cmd := &cobra.Command{
		Use:   "transition <id> <status>",
		Short: "Apply a validated status transition",
		Long: `Applies a lifecycle transition. Illegal moves fail and list the allowed destinations.
--reason is appended as a BLOCKED note when entering blocked.
--decision-title names the decision opened when entering waiting_decision.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := domain.ParseTaskStatus(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				res, err := ac.Engine.TransitionTaskStatus(ctx, args[0], to, opts)
				if err != nil {
					return err
				}
				if res.DecisionID != nil && !jsonOutput() {
					fmt.Fprintf(cmd.OutOrStdout(), "task %s -> %s; decision %s opened\n", res.TaskID, to, *res.DecisionID)
					return nil
				}
				return printJSONOrTable(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&opts.BlockedReason, "reason", "", "reason note when blocking")
	cmd.Flags().StringVar(&opts.DecisionTitle, "decision-title", "", "title of the decision opened on waiting_decision")
	return cmd
}

func taskMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move a board task to another column (no lifecycle checks)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := domain.ParseTaskStatus(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				id, err := ac.Engine.MoveStatus(ctx, args[0], to)
				if err != nil {
					return err
				}
				t, err := ac.Engine.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), t)
			})
		},
	}
}

func taskOverdueCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List open tasks past their due time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				tasks, err := ac.Engine.ListOverdueTasks(ctx, limit)
				if err != nil {
					return err
				}
				return renderTable(cmd.OutOrStdout(), tasks, taskHeader, taskRows(tasks))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows (<= 200)")
	return cmd
}
