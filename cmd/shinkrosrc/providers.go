package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/varoOP/shinkrosrc/internal/app"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Manage stored provider configs",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and custom providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			list, err := a.Providers().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list providers: %w", err)
			}
			if len(list) == 0 {
				fmt.Println("No providers stored. Run 'shinkrosrc analyze <url>' to create one.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tNAME\tTYPE\tSOURCE\tACTIVE")
			for _, p := range list {
				source := "custom"
				if p.BuiltIn {
					source = "built-in"
				}
				active := ""
				if p.Active {
					active = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Slug, p.Name, p.Type, source, active)
			}
			return w.Flush()
		})
	},
}

var providersShowCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Print a provider config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asYAML, _ := cmd.Flags().GetBool("yaml")
		return withApp(func(a *app.App) error {
			cfg, err := a.Providers().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asYAML {
				return printYAML(os.Stdout, cfg)
			}
			return printJSON(cfg)
		})
	},
}

var providersActivateCmd = &cobra.Command{
	Use:   "activate <slug>",
	Short: "Make a provider active for a content type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := contentTypeFlag(cmd)
		if err != nil {
			return err
		}
		return withApp(func(a *app.App) error {
			if err := a.Providers().SetActive(cmd.Context(), t, args[0]); err != nil {
				return fmt.Errorf("failed to activate %s: %w", args[0], err)
			}
			fmt.Printf("Activated %s for %s.\n", args[0], t)
			return nil
		})
	},
}

var providersDeactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Clear the active provider for a content type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := contentTypeFlag(cmd)
		if err != nil {
			return err
		}
		return withApp(func(a *app.App) error {
			return a.Providers().ClearActive(cmd.Context(), t)
		})
	},
}

var providersDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Delete a custom provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			if err := a.Providers().Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete %s: %w", args[0], err)
			}
			fmt.Printf("Deleted %s.\n", args[0])
			return nil
		})
	},
}

func init() {
	providersShowCmd.Flags().Bool("yaml", false, "print as YAML instead of JSON")
	providersActivateCmd.Flags().String("type", "both", "content type: anime, manga or both")
	providersDeactivateCmd.Flags().String("type", "both", "content type: anime, manga or both")

	providersCmd.AddCommand(providersListCmd, providersShowCmd, providersActivateCmd, providersDeactivateCmd, providersDeleteCmd)
	rootCmd.AddCommand(providersCmd)
}
