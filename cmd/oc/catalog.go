package main

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"opsconsole/internal/app"
	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
)

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}

	var email string
	create := &cobra.Command{
		Use:   "create <display-name>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				u, err := ac.Engine.CreateUser(ctx, args[0], email)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), u)
			})
		},
	}
	create.Flags().StringVar(&email, "email", "", "email address")

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				users, err := ac.Engine.ListUsers(ctx)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(users))
				for _, u := range users {
					rows = append(rows, table.Row{u.ID, u.DisplayName, u.Email, u.CreatedAt})
				}
				return renderTable(cmd.OutOrStdout(), users, table.Row{"ID", "Name", "Email", "Created"}, rows)
			})
		},
	}
	user.AddCommand(create, list)
	return user
}

func goalCmd() *cobra.Command {
	goal := &cobra.Command{
		Use:   "goal",
		Short: "Manage goals",
		Long:  "A goal groups boards and tasks. Creating one also creates its default board.",
	}
	goal.AddCommand(goalCreateCmd(), goalListCmd(), goalShowCmd(), goalUpdateCmd())
	return goal
}

func goalCreateCmd() *cobra.Command {
	var opts engine.GoalCreateOptions
	var priority string
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a goal and its default board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Title = args[0]
			opts.Priority = domain.Priority(priority)
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				if opts.OwnerUserID == "" {
					u, err := ac.ResolveUser(ctx, "")
					if err != nil {
						return err
					}
					opts.OwnerUserID = u.ID
				}
				g, err := ac.Engine.CreateGoal(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), g)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Domain, "domain", "", "work or personal (default work)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "active, paused, completed or archived (default active)")
	cmd.Flags().StringVar(&priority, "priority", "", "p1, p2 or p3 (default p2)")
	cmd.Flags().StringVar(&opts.OwnerUserID, "owner", "", "owner user id (defaults to the acting user)")
	return cmd
}

func goalListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				goals, err := ac.Engine.ListGoals(ctx, status)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(goals))
				for _, g := range goals {
					rows = append(rows, table.Row{g.ID, g.Title, g.Domain, g.Status, g.Priority})
				}
				return renderTable(cmd.OutOrStdout(), goals, table.Row{"ID", "Title", "Domain", "Status", "Priority"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func goalShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				g, err := ac.Engine.GetGoal(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), g)
			})
		},
	}
}

func goalUpdateCmd() *cobra.Command {
	var title, description, dom, status, priority, owner string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Patch goal fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.GoalUpdateOptions{
				ID:          args[0],
				Title:       optionalFlag(cmd, "title", title),
				Description: optionalFlag(cmd, "description", description),
				Domain:      optionalFlag(cmd, "domain", dom),
				Status:      optionalFlag(cmd, "status", status),
				OwnerUserID: optionalFlag(cmd, "owner", owner),
			}
			if cmd.Flags().Changed("priority") {
				p := domain.Priority(priority)
				opts.Priority = &p
			}
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				g, err := ac.Engine.UpdateGoal(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), g)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&dom, "domain", "", "work or personal")
	cmd.Flags().StringVar(&status, "status", "", "active, paused, completed or archived")
	cmd.Flags().StringVar(&priority, "priority", "", "p1, p2 or p3")
	cmd.Flags().StringVar(&owner, "owner", "", "owner user id")
	return cmd
}

func boardCmd() *cobra.Command {
	board := &cobra.Command{Use: "board", Short: "Manage boards"}

	var opts engine.BoardCreateOptions
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				b, err := ac.Engine.CreateBoard(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), b)
			})
		},
	}
	create.Flags().StringVar(&opts.GoalID, "goal", "", "goal id")
	create.Flags().StringVar(&opts.Description, "description", "", "description")
	create.Flags().StringVar(&opts.Kind, "kind", "", "generic, content_pipeline, software_pipeline or custom")
	create.Flags().StringSliceVar(&opts.Columns, "columns", nil, "column statuses, comma separated")

	var goalID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List boards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				boards, err := ac.Engine.ListBoards(ctx, goalID)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(boards))
				for _, b := range boards {
					rows = append(rows, table.Row{b.ID, b.Name, b.Kind, deref(b.GoalID)})
				}
				return renderTable(cmd.OutOrStdout(), boards, table.Row{"ID", "Name", "Kind", "Goal"}, rows)
			})
		},
	}
	list.Flags().StringVar(&goalID, "goal", "", "goal filter")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				b, err := ac.Engine.GetBoard(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), b)
			})
		},
	}
	board.AddCommand(create, list, show, boardUpdateCmd())
	return board
}

func boardUpdateCmd() *cobra.Command {
	var name, description, goalID, kind string
	var columns []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Patch board fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.BoardUpdateOptions{
				ID:          args[0],
				Name:        optionalFlag(cmd, "name", name),
				Description: optionalFlag(cmd, "description", description),
				GoalID:      optionalFlag(cmd, "goal", goalID),
				Kind:        optionalFlag(cmd, "kind", kind),
			}
			if cmd.Flags().Changed("columns") {
				opts.Columns = &columns
			}
			return withApp(cmd, func(ctx context.Context, ac *app.Context) error {
				b, err := ac.Engine.UpdateBoard(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd.OutOrStdout(), b)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&goalID, "goal", "", "goal id (empty detaches)")
	cmd.Flags().StringVar(&kind, "kind", "", "generic, content_pipeline, software_pipeline or custom")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "column statuses, comma separated (empty clears)")
	return cmd
}
