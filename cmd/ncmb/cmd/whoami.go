package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the locally cached user identity",
	RunE: func(_ *cobra.Command, _ []string) error {
		doc := app.Users.Current()
		if doc.ObjectID() == "" {
			color.Yellow("not logged in")
			return nil
		}

		userName, _ := doc["userName"].(string)
		color.Green("user:   %s", userName)
		color.Green("id:     %s", doc.ObjectID())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
