package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/CodexForgeBR/with-retry/internal/cli"
	"github.com/CodexForgeBR/with-retry/internal/config"
	"github.com/CodexForgeBR/with-retry/internal/exitcode"
	"github.com/CodexForgeBR/with-retry/internal/logging"
	"github.com/CodexForgeBR/with-retry/internal/retry"
	"github.com/CodexForgeBR/with-retry/internal/runner"
)

// version vars injected via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	r := &runner.PTYRunner{Out: os.Stdout, Stdin: os.Stdin}
	os.Exit(execute(os.Args[1:], os.Stdout, r))
}

// execute runs the root command with args and returns the exit code.
func execute(args []string, out io.Writer, r runner.Runner) int {
	cfg := config.NewDefaultConfig()
	code := exitcode.Success

	rootCmd := newRootCmd(cfg, r, &code)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)

	if err := rootCmd.Execute(); err != nil {
		logging.Error(err.Error())
		return exitcode.Error
	}
	return code
}

func newRootCmd(cfg *config.Config, r runner.Runner, code *int) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "with-retry <program> [args...]",
		Short:   "Run a command until it succeeds, up to 10 attempts",
		Long:    "with-retry runs a command on a pseudo-terminal and retries it until it exits 0 or fails 10 times in a row.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cli.PrintUsage(cmd.OutOrStdout())
				*code = exitcode.Error
				return nil
			}

			logging.SetVerbose(cfg.Verbose)
			if cfg.NoColor {
				color.NoColor = true
			}

			ctrl := &retry.Controller{Runner: r, Out: cmd.OutOrStdout()}
			*code = ctrl.Run(args)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.BindFlags(rootCmd, cfg)
	cli.SetCustomHelp(rootCmd)

	return rootCmd
}
