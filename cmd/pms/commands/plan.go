package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/pms/internal/core/domain"
)

// runPlan prints the plan, asks for confirmation unless -y is set and
// executes it.
func (c *CLI) runPlan(cmd *cobra.Command, plan domain.Plan) error {
	out := cmd.OutOrStdout()

	if plan.Empty() {
		_, _ = fmt.Fprintln(out, "Nothing to do.")
		return nil
	}

	_, _ = fmt.Fprintln(out, "The following operations will be performed:")
	for _, unit := range plan.Units() {
		_, _ = fmt.Fprintln(out, "  "+renderUnit(unit))
	}

	if !c.assumeYes && !c.confirm(cmd) {
		_, _ = fmt.Fprintln(out, "Aborted.")
		return nil
	}

	report, err := c.app.Apply(cmd.Context(), plan)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "%d operation(s) committed.\n", report.Committed())
	return nil
}

func renderUnit(unit domain.Unit) string {
	line := string(unit.Action) + " " + unit.Name + " " + unit.Version.String()
	if unit.Action == domain.ActionUpgrade {
		line += " (from " + unit.Previous.String() + ")"
	}
	return line
}

func (c *CLI) confirm(cmd *cobra.Command) bool {
	_, _ = fmt.Fprint(cmd.OutOrStdout(), "Do you want to continue? [Y/n] ")

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true
	default:
		return false
	}
}
