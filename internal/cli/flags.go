package cli

import (
	"github.com/spf13/cobra"

	"github.com/CodexForgeBR/with-retry/internal/config"
)

// BindFlags registers the wrapper's own flags on the given cobra command.
//
// Flag parsing stops at the first positional argument, so flags meant for the
// wrapped program (with-retry ls -la) are left in the argument list.
func BindFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	flags.SetInterspersed(false)

	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Print debug lines to stderr")
	flags.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")
}
