package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search available packages by name or description",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			short, _ := cmd.Flags().GetBool("short")

			hits, err := c.app.Search(cmd.Context(), query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, hit := range hits {
				if short {
					_, _ = fmt.Fprintln(out, hit.Name)
					continue
				}
				_, _ = fmt.Fprintf(out, "%s %s - %s\n", hit.Name, hit.Version, hit.Manifest.Description)
			}
			return nil
		},
	}
	cmd.Flags().BoolP("short", "s", false, "Print package names only")
	return cmd
}
