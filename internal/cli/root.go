// Package cli is the optionsctl command line: offline pricing, implied and
// historical volatility and covered-call premium sizing.
package cli

import (
	"xstock-options/internal/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version information
const Version = config.Version

// App holds what the commands share.
type App struct {
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "optionsctl",
		Short: "Price covered calls on tokenized equities",
		Long: `optionsctl runs the venue's pricing engine offline.

It prices calls and puts with Greeks, backs implied volatility out of a
premium, estimates historical volatility from a price series and sizes a
covered-call premium in base units.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	addPricingCommands(rootCmd, app)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"version": Version})
			}
			output.Printf("optionsctl v%s\n", Version)
			return nil
		},
	}
}
