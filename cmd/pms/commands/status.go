package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <package>",
		Short: "Show the installed record of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			installedOnly, _ := cmd.Flags().GetBool("installed")

			rec, err := c.app.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if installedOnly {
				// Exit code is the whole answer.
				if rec == nil {
					return ErrSilent
				}
				return nil
			}

			out := cmd.OutOrStdout()
			if rec == nil {
				_, _ = fmt.Fprintf(out, "%s is not installed\n", args[0])
				return ErrSilent
			}

			_, _ = fmt.Fprintf(out, "Name: %s\n", rec.Name)
			_, _ = fmt.Fprintf(out, "Version: %s\n", rec.Version)
			_, _ = fmt.Fprintf(out, "Description: %s\n", rec.Manifest.Description)
			_, _ = fmt.Fprintf(out, "Maintainer: %s\n", rec.Manifest.Maintainer)
			if rec.Manifest.Homepage != "" {
				_, _ = fmt.Fprintf(out, "Homepage: %s\n", rec.Manifest.Homepage)
			}
			for _, dep := range rec.Manifest.Depends {
				_, _ = fmt.Fprintf(out, "Depends: %s\n", dep)
			}
			dependents, err := c.app.Dependents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, dependent := range dependents {
				_, _ = fmt.Fprintf(out, "Required by: %s\n", dependent)
			}
			_, _ = fmt.Fprintf(out, "Installed: %s\n", rec.InstalledAt.Format("2006-01-02 15:04:05 MST"))
			_, _ = fmt.Fprintf(out, "Files: %d\n", len(rec.Files))
			return nil
		},
	}
	cmd.Flags().BoolP("installed", "i", false, "Only report installation state via the exit code")
	return cmd
}
