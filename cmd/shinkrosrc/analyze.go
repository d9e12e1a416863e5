package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/varoOP/shinkrosrc/internal/app"
	"github.com/varoOP/shinkrosrc/internal/orchestrator"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Analyze a site and generate a provider config",
	Long: `Analyze runs the full pipeline against a site:
1. Probes the base page and robots.txt
2. Discovers GraphQL and REST endpoints
3. Exercises them with probe queries to infer result shapes
4. Generates a config from the best scoring template
5. Optionally validates the config against the live site
6. Saves it as a custom provider unless --dry-run is set`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		validate, _ := cmd.Flags().GetBool("validate")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		activate, _ := cmd.Flags().GetBool("activate")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		return withApp(func(a *app.App) error {
			res, err := a.Analyze(cmd.Context(), args[0], orchestrator.Options{
				Name:     name,
				Validate: validate,
				DryRun:   dryRun,
				Activate: activate,
				Timeout:  timeout,
				OnProgress: func(p orchestrator.Progress) {
					fmt.Fprintf(os.Stderr, "[%3d%%] %-11s %s\n", p.Percent, p.Phase, p.Message)
				},
			})
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			fmt.Printf("\nProvider:  %s (%s)\n", res.Config.Name, res.Config.Slug)
			fmt.Printf("Type:      %s\n", res.Config.Type)
			fmt.Printf("Template:  %s (score %d)\n", res.TemplateID, res.Score)
			fmt.Printf("Endpoints: %d discovered\n", len(res.Schema.Endpoints))
			if res.Validation != nil {
				printValidation(res.Validation)
			}
			switch {
			case dryRun:
				if err := printJSON(res.Config); err != nil {
					return err
				}
				fmt.Println("\nDry run: nothing was saved.")
			case res.Activated:
				fmt.Printf("\nSaved and activated %s.\n", res.Config.Slug)
			default:
				fmt.Printf("\nSaved %s.\n", res.Config.Slug)
			}
			return nil
		})
	},
}

func init() {
	analyzeCmd.Flags().String("name", "", "provider name (default derived from the site title or host)")
	analyzeCmd.Flags().Bool("validate", false, "validate the generated config against the live site")
	analyzeCmd.Flags().Bool("dry-run", false, "print the generated config without saving it")
	analyzeCmd.Flags().Bool("activate", false, "make the saved provider active for its content type")
	analyzeCmd.Flags().Duration("timeout", 0, "overall analysis deadline (default analysis_timeout)")
	rootCmd.AddCommand(analyzeCmd)
}
