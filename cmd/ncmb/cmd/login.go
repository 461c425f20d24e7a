package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the backend",
	Long: `Authenticates with a user name and password.

The session token is persisted locally, following commands reuse it
until logout or expiry.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Print("User name: ")
		var userName string
		_, _ = fmt.Scanln(&userName)

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("cannot read password: %w", err)
		}
		fmt.Println()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		doc, err := app.Users.Login(ctx, userName, string(password))
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		color.Green("✓ logged in as %s (%s)", userName, doc.ObjectID())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
