package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/pms/internal/core/domain"
)

func (c *CLI) newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, _ := cmd.Flags().GetBool("summary")

			recs, err := c.app.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, rec := range recs {
				if summary {
					_, _ = fmt.Fprintf(out, "%s_%s_%s\n", rec.Name, rec.Version, domain.Arch)
					continue
				}
				_, _ = fmt.Fprintf(out, "%s %s - %s\n", rec.Name, rec.Version, rec.Manifest.Description)
			}
			return nil
		},
	}
	// The host's full software inventory is outside the store's knowledge,
	// so -a currently lists the same set as the default.
	cmd.Flags().BoolP("all", "a", false, "List all packages")
	cmd.Flags().BoolP("summary", "s", false, "Print one name_version_arch line per package")
	return cmd
}
