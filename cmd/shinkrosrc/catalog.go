package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/varoOP/shinkrosrc/internal/app"
	"github.com/varoOP/shinkrosrc/internal/domain"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the built-in and active providers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(c domain.Catalog) error {
			items, err := c.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printItems(items)
		})
	},
}

var popularCmd = &cobra.Command{
	Use:   "popular",
	Short: "Browse popular titles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(c domain.Catalog) error {
			items, err := c.BrowsePopular(cmd.Context())
			if err != nil {
				return err
			}
			return printItems(items)
		})
	},
}

var childrenCmd = &cobra.Command{
	Use:   "children <item-id>",
	Short: "List the episodes or chapters of an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(c domain.Catalog) error {
			children, err := c.ListChildren(cmd.Context(), domain.Item{ID: args[0]})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNUMBER\tTITLE")
			for _, ch := range children {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ch.ID, strconv.FormatFloat(ch.Number, 'f', -1, 64), ch.Title)
			}
			return w.Flush()
		})
	},
}

var mediaCmd = &cobra.Command{
	Use:   "media <child-id>",
	Short: "Resolve the streams or pages of an episode or chapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(c domain.Catalog) error {
			links, err := c.ResolveMedia(cmd.Context(), domain.Child{ID: args[0]})
			if err != nil {
				return err
			}
			if len(links) == 0 {
				fmt.Println("No media found.")
				return nil
			}
			return printJSON(links)
		})
	},
}

func withCatalog(cmd *cobra.Command, fn func(c domain.Catalog) error) error {
	t, err := contentTypeFlag(cmd)
	if err != nil {
		return err
	}
	return withApp(func(a *app.App) error {
		c, err := a.Catalog(t)
		if err != nil {
			return err
		}
		return fn(c)
	})
}

func printItems(items []domain.Item) error {
	if len(items) == 0 {
		fmt.Println("No results.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPROVIDER")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", it.ID, it.Title, it.Provider)
	}
	return w.Flush()
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, popularCmd, childrenCmd, mediaCmd} {
		c.Flags().String("type", "anime", "content type: anime or manga")
		rootCmd.AddCommand(c)
	}
}
