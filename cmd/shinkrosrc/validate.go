package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/shinkrosrc/internal/app"
)

var validateCmd = &cobra.Command{
	Use:   "validate <slug>",
	Short: "Validate a stored provider against its live site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			res, err := a.Validate(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			printValidation(res)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
