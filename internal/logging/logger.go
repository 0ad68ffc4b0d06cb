// Package logging provides colored, leveled log output for the with-retry CLI.
//
// Log lines go to stderr so they never mix with the wrapped command's output
// or the attempt reports on stdout. Debug output is suppressed unless verbose
// mode is enabled via SetVerbose(true).
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// verbose controls whether Debug() produces output.
var verbose bool

// out is where log lines are written. Replaced in tests.
var out io.Writer = os.Stderr

var (
	warnPrefix  = color.New(color.FgYellow).SprintFunc()
	errorPrefix = color.New(color.FgRed).SprintFunc()
	debugPrefix = color.New(color.FgBlue).SprintFunc()
)

// SetVerbose enables or disables Debug output.
func SetVerbose(v bool) {
	verbose = v
}

// SetOutput redirects log output and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := out
	out = w
	return prev
}

// Warn prints a warning message in yellow.
func Warn(msg string) {
	fmt.Fprintln(out, warnPrefix("[WARN]")+" "+msg)
}

// Error prints an error message in red.
func Error(msg string) {
	fmt.Fprintln(out, errorPrefix("[ERROR]")+" "+msg)
}

// Debug prints a debug message in blue, only when verbose mode is enabled.
func Debug(msg string) {
	if !verbose {
		return
	}
	fmt.Fprintln(out, debugPrefix("[DEBUG]")+" "+msg)
}

// Debugf is Debug with fmt.Sprintf formatting. Arguments are not formatted
// when verbose mode is off.
func Debugf(format string, args ...any) {
	if !verbose {
		return
	}
	Debug(fmt.Sprintf(format, args...))
}

// FormatDuration converts a duration in seconds to a human-readable string.
//
// Examples:
//
//	FormatDuration(0)    => "0s"
//	FormatDuration(45)   => "45s"
//	FormatDuration(90)   => "1m 30s"
//	FormatDuration(3661) => "1h 1m 1s"
func FormatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
