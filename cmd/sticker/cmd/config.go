package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/sticker/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
		Long: `Inspect the effective configuration or write a default configuration file.

Configuration is read from --config, or from sticker.yaml in the search
paths, then overridden by STICKER_* environment variables and flags.`,
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(a), newConfigPathsCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write a configuration file with the defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				file = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(file); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", file)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.GenerateDefaultConfigFile(file); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", file)
			return err
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.current()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			if used := a.loader.GetConfigFileUsed(); used != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# loaded from %s\n", used)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "List the configuration search paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.GetConfigSearchPaths() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
