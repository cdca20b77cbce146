package main

import (
	"strings"

	"github.com/spf13/cobra"

	"trimsync/internal/config"
)

func newRootCommand() *cobra.Command {
	var apiFlag string
	var configFlag string

	client := &apiClient{}

	rootCmd := &cobra.Command{
		Use:           "trimsync",
		Short:         "Trimsync CLI",
		Long:          "Inspect and control the trimsync daemon: submit trim jobs, review decisions, apply overrides, and follow progress.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			base := strings.TrimSpace(apiFlag)
			if base == "" {
				cfg, _, _, err := config.Load(configFlag)
				if err != nil {
					return err
				}
				base = "http://" + cfg.Paths.APIBind
			}
			client.init(base)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "Daemon API base URL (default derived from config)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newStatusCommand(client))
	rootCmd.AddCommand(newCreateCommand(client))
	rootCmd.AddCommand(newListCommand(client))
	rootCmd.AddCommand(newShowCommand(client))
	rootCmd.AddCommand(newOverrideCommand(client))
	rootCmd.AddCommand(newRenderCommand(client))
	rootCmd.AddCommand(newEventsCommand(client))
	rootCmd.AddCommand(newLogsCommand(client))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
