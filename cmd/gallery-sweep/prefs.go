package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fpang/gallery-sweep/internal/awsboot"
	"github.com/fpang/gallery-sweep/internal/logging"
	"github.com/fpang/gallery-sweep/internal/setup"
)

func newPrefsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage saved preferences",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Show the instructions again on the next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Init()
			cfg, _, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			store, err := setup.Prefs(cmd.Context(), cfg, &awsboot.Lazy{})
			if err != nil {
				return err
			}
			if err := store.Save(cmd.Context(), false); err != nil {
				return fmt.Errorf("reset preferences: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Preferences reset. The instructions will show on the next run.")
			return nil
		},
	})
	return cmd
}
