package cmd

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the backend is reachable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		if err := app.Ping(ctx); err != nil {
			return err
		}

		color.Green("✓ %s is reachable", cfg.APIHost)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
