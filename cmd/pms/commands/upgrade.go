package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade every installed package with a newer version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := c.app.PlanUpgrade(cmd.Context())
			if err != nil {
				return err
			}
			return c.runPlan(cmd, plan)
		},
	}
}
