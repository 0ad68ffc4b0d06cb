// Package cli provides help text, usage formatting and flag binding for the
// with-retry CLI.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// UsageLine is printed when with-retry is run without a command.
const UsageLine = "Usage: with-retry command --and your --args of choice"

const helpTemplate = `with-retry - Run a command until it succeeds, up to 10 attempts

USAGE
  with-retry [flags] <program> [args...]

  Flags are only read up to the first non-flag argument. Everything from
  <program> onwards is passed to the command untouched.

FLAGS
  -v, --verbose      Print debug lines (attempt timing, pty details) to stderr
  --no-color         Disable colored output
  -h, --help         Show this help text
  --version          Show version, commit, build date

BEHAVIOR
  The command runs on a pseudo-terminal, so its output keeps line buffering
  and colors. Each failed attempt is reported as it happens. There is no
  delay between attempts. A missing executable is reported once and never
  retried.

EXIT CODES
  0   Success              The command exited 0 on some attempt
  1   Error                No command given, command not found, or 10 failed attempts

EXAMPLES
  # Retry a flaky package install
  with-retry npm install

  # Flags after the program name belong to the program
  with-retry go test -count=1 ./...
`

// SetCustomHelp configures the cobra command to use our custom help template.
func SetCustomHelp(cmd *cobra.Command) {
	cmd.SetHelpTemplate(helpTemplate)
}

// PrintUsage writes the one-line usage message to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, UsageLine)
}
