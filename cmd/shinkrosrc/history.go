package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/varoOP/shinkrosrc/internal/app"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent analysis runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(func(a *app.App) error {
			runs, err := a.History(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}
			if len(runs) == 0 {
				fmt.Println("No analysis runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tURL\tSLUG\tTEMPLATE\tSCORE\tVALID\tDURATION")
			for _, r := range runs {
				valid := "-"
				if r.Validated {
					valid = fmt.Sprintf("%t", r.Valid)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					r.StartedAt.Local().Format(time.DateTime), r.URL, r.Slug, r.TemplateID, r.Score, valid, r.Duration.Round(time.Millisecond))
			}
			return w.Flush()
		})
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
