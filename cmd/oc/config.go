package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"opsconsole/internal/config"
)

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Workspace configuration (opsconsole.yml)",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default opsconsole.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault(viper.GetString("workspace"), force)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]string{"path": path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate opsconsole.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if jsonOutput() {
				res := map[string]any{"ok": err == nil}
				if err != nil {
					res["error"] = err.Error()
				}
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config ok")
			return nil
		},
	}

	cfgCmd.AddCommand(initCmd, show, validate)
	return cfgCmd
}
