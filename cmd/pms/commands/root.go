// Package commands implements the CLI commands for the pms package manager.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/pms/internal/build"
	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/pms/internal/core/ports"
	"go.trai.ch/pms/internal/engine/txn"
	"go.trai.ch/zerr"
)

// ErrSilent marks failures whose only signal is the exit code.
var ErrSilent = zerr.New("silent failure")

// CLI represents the command line interface for pms.
type CLI struct {
	app       Application
	logger    ports.Logger
	rootCmd   *cobra.Command
	assumeYes bool
}

// Application represents the application logic interface.
type Application interface {
	PlanInstall(ctx context.Context, names []string) (domain.Plan, error)
	PlanRemove(ctx context.Context, names []string, force bool) (domain.Plan, error)
	PlanUpgrade(ctx context.Context) (domain.Plan, error)
	Apply(ctx context.Context, plan domain.Plan) (txn.Report, error)
	Update(ctx context.Context) error
	List(ctx context.Context) ([]domain.InstalledPackage, error)
	Search(ctx context.Context, query string) ([]domain.Entry, error)
	Status(ctx context.Context, name string) (*domain.InstalledPackage, error)
	Dependents(ctx context.Context, name string) ([]string, error)
	Build(ctx context.Context, dir, outDir string) (string, domain.ContentHash, error)
	Clean(ctx context.Context) error
}

// New creates a new CLI instance with the given app and logger.
func New(a Application, log ports.Logger) *CLI {
	rootCmd := &cobra.Command{
		Use:           "pms",
		Short:         "A package manager for single hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		logger:  log,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVarP(&c.assumeYes, "assume-yes", "y", false, "Answer yes to confirmation prompts")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		quiet, _ := cmd.Flags().GetBool("quiet")
		c.logger.SetQuiet(quiet)
	}

	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newRemoveCmd())
	rootCmd.AddCommand(c.newUpgradeCmd())
	rootCmd.AddCommand(c.newUpdateCmd())
	rootCmd.AddCommand(c.newListCmd())
	rootCmd.AddCommand(c.newSearchCmd())
	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// SetInput sets the input stream for confirmation prompts. Used for testing.
func (c *CLI) SetInput(in io.Reader) {
	c.rootCmd.SetIn(in)
}
