package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <dir>",
		Short: "Pack a package tree into an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("output")

			path, hash, err := c.app.Build(cmd.Context(), args[0], outDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, path)
			_, _ = fmt.Fprintln(out, hash.String())
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", ".", "Directory to place the archive in")
	return cmd
}
