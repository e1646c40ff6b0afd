package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <package>[=version]...",
		Short: "Install packages and their dependencies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := c.app.PlanInstall(cmd.Context(), args)
			if err != nil {
				return err
			}
			return c.runPlan(cmd, plan)
		},
	}
}
