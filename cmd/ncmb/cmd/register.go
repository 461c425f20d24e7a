package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register-installation",
	Short: "Register this installation with the backend",
	Long: `Acquires a device token from the platform push runtime and creates
or updates the installation record. Without a configured push runtime
this fails immediately.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		done := make(chan error, 1)
		app.Installations.Register(cmd.Context(), func(token string, err error) {
			if err == nil {
				color.Green("✓ installation registered (token %s)", token)
			}
			done <- err
		})

		if err := <-done; err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
}
