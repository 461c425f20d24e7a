package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the current session and clear local identity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := app.Users.Logout(ctx); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}

		color.Green("✓ logged out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
