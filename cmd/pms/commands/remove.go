package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <package>...",
		Short: "Remove installed packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			plan, err := c.app.PlanRemove(cmd.Context(), args, force)
			if err != nil {
				return err
			}
			return c.runPlan(cmd, plan)
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Also remove packages depending on the targets")
	return cmd
}
