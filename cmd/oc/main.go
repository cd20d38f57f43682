package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"opsconsole/internal/app"
	"opsconsole/internal/telemetry"
)

var version = "dev"

func main() {
	cobra.OnInitialize(initConfig)
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "oc",
		Short: "Ops Console CLI",
		Long: `oc is the operator console for goals, boards and tasks worked on by people and agents.
- Tasks move through todo, in_progress, blocked, waiting_decision, done and canceled; done and canceled only reopen to todo.
- Moving a task to waiting_decision opens a pending decision; approving it resumes the task, rejecting it blocks the task with a note.
- Every change lands in the activity feed ('oc activity').`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLogLevel(viper.GetString("log-level"))
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
	addPersistentFlags(root)
	root.AddCommand(userCmd())
	root.AddCommand(goalCmd())
	root.AddCommand(boardCmd())
	root.AddCommand(taskCmd())
	root.AddCommand(decisionCmd())
	root.AddCommand(runCmd())
	root.AddCommand(outputCmd())
	root.AddCommand(activityCmd())
	root.AddCommand(complianceCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(serveCmd())
	return root
}

func initConfig() {
	viper.SetEnvPrefix("OPSCONSOLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("user", "", "acting user id (defaults to the local user)")
	for _, name := range []string{"workspace", "json", "log-level", "user"} {
		_ = viper.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q", s)
	}
	return level, nil
}

// --- helpers ---

// withApp opens the workspace, starts telemetry per its config, and runs fn.
func withApp(cmd *cobra.Command, fn func(context.Context, *app.Context) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ac, err := app.Open(ctx, viper.GetString("workspace"), slog.Default())
	if err != nil {
		return err
	}
	defer ac.Close()
	shutdown, err := telemetry.Init(ctx, ac.Config.Telemetry, version, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	return fn(ctx, ac)
}

func jsonOutput() bool { return viper.GetBool("json") }

// printJSONOrTable prints single records. They have no tabular form, so both
// modes emit indented JSON; --json only changes the summary lines commands
// print around them.
func printJSONOrTable(w io.Writer, v any) error {
	return printJSON(w, v)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTable prints rows through go-pretty unless --json is set, in which
// case raw is emitted instead.
func renderTable(w io.Writer, raw any, header table.Row, rows []table.Row) error {
	if jsonOutput() {
		return printJSON(w, raw)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	tw.Render()
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalFlag(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}
