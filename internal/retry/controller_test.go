package retry

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"syscall"
	"testing"

	"github.com/creack/pty"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodexForgeBR/with-retry/internal/config"
	"github.com/CodexForgeBR/with-retry/internal/exitcode"
	"github.com/CodexForgeBR/with-retry/internal/runner"
)

func init() {
	color.NoColor = true
}

// scriptedRunner returns results in order, repeating the last one once the
// script runs out.
type scriptedRunner struct {
	calls   int
	argv    [][]string
	results []runner.Result
}

func (s *scriptedRunner) Run(argv []string) runner.Result {
	s.argv = append(s.argv, argv)
	idx := s.calls
	s.calls++
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	return s.results[idx]
}

// Compile-time interface check.
var _ runner.Runner = (*scriptedRunner)(nil)

// exitWith builds the result the pty runner reports for a child exiting with
// code, including the *exec.ExitError it carries for nonzero codes.
func exitWith(t *testing.T, code int) runner.Result {
	t.Helper()
	if code == 0 {
		return runner.Result{Kind: runner.Success}
	}
	err := exec.Command("sh", "-c", fmt.Sprintf("exit %d", code)).Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	return runner.Result{Kind: runner.NonZeroExit, ExitCode: code, Err: exitErr}
}

func attemptLines(out string) int {
	return strings.Count(out, "Attempt #")
}

func TestController_SucceedsOnFirstAttempt(t *testing.T) {
	r := &scriptedRunner{results: []runner.Result{exitWith(t, 0)}}
	var out bytes.Buffer
	c := &Controller{Runner: r, Out: &out}

	code := c.Run([]string{"true"})

	assert.Equal(t, exitcode.Success, code)
	assert.Equal(t, 1, r.calls)
	assert.Empty(t, out.String())
}

func TestController_AlwaysFailing(t *testing.T) {
	r := &scriptedRunner{results: []runner.Result{exitWith(t, 2)}}
	var out bytes.Buffer
	c := &Controller{Runner: r, Out: &out}

	code := c.Run([]string{"sh", "-c", "exit 2"})

	assert.Equal(t, exitcode.Error, code)
	assert.Equal(t, config.MaxAttempts, r.calls)
	assert.Equal(t, config.MaxAttempts, attemptLines(out.String()))

	for i := 0; i < config.MaxAttempts; i++ {
		assert.Contains(t, out.String(), fmt.Sprintf("Attempt #%d failure: ExitError:\nexit status 2\n", i))
	}
	assert.True(t, strings.HasSuffix(out.String(), "Permanently failed to execute: sh -c exit 2\n"))
	assert.NotContains(t, out.String(), "Last exception")
}

func TestController_SucceedsAfterFailures(t *testing.T) {
	for k := 1; k < config.MaxAttempts; k++ {
		t.Run(fmt.Sprintf("fails %d times", k), func(t *testing.T) {
			results := make([]runner.Result, 0, k+1)
			for i := 0; i < k; i++ {
				results = append(results, exitWith(t, 1))
			}
			results = append(results, exitWith(t, 0))

			r := &scriptedRunner{results: results}
			var out bytes.Buffer
			c := &Controller{Runner: r, Out: &out}

			assert.Equal(t, exitcode.Success, c.Run([]string{"flaky"}))
			assert.Equal(t, k+1, r.calls)
			assert.Equal(t, k, attemptLines(out.String()))
			assert.NotContains(t, out.String(), "Permanently failed")
		})
	}
}

func TestController_ReportLinesArePlainOnColorTerminal(t *testing.T) {
	color.NoColor = false
	defer func() { color.NoColor = true }()

	r := &scriptedRunner{results: []runner.Result{exitWith(t, 3)}}
	var out bytes.Buffer
	c := &Controller{Runner: r, Out: &out}

	assert.Equal(t, exitcode.Error, c.Run([]string{"sh", "-c", "exit 3"}))

	var want strings.Builder
	for i := 0; i < config.MaxAttempts; i++ {
		fmt.Fprintf(&want, "Attempt #%d failure: ExitError:\nexit status 3\n", i)
	}
	want.WriteString("Permanently failed to execute: sh -c exit 3\n")
	assert.Equal(t, want.String(), out.String())
	assert.NotContains(t, out.String(), "\x1b[")
}

func TestController_CommandNotFound(t *testing.T) {
	notFound := runner.Result{Kind: runner.NotFound, ExitCode: 1, Err: errors.New("executable file not found in $PATH")}
	r := &scriptedRunner{results: []runner.Result{notFound}}
	var out bytes.Buffer
	c := &Controller{Runner: r, Out: &out}

	code := c.Run([]string{"does-not-exist", "--flag"})

	assert.Equal(t, exitcode.Error, code)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, "does-not-exist: command not found\n", out.String())
}

func TestController_NotFoundAfterFailuresStops(t *testing.T) {
	r := &scriptedRunner{results: []runner.Result{
		exitWith(t, 1),
		{Kind: runner.NotFound, ExitCode: 1, Err: errors.New("gone")},
		exitWith(t, 0),
	}}
	var out bytes.Buffer
	c := &Controller{Runner: r, Out: &out}

	assert.Equal(t, exitcode.Error, c.Run([]string{"vanishing"}))
	assert.Equal(t, 2, r.calls)
	assert.True(t, strings.HasSuffix(out.String(), "vanishing: command not found\n"))
}

func TestController_ReportsMostRecentDiagnostic(t *testing.T) {
	first := errors.New("first failure")
	eio := &fs.PathError{Op: "read", Path: "/dev/ptmx", Err: syscall.EIO}

	results := []runner.Result{
		{Kind: runner.ExecutionError, ExitCode: 1, Err: first, Diagnostic: first},
	}
	withEIO := exitWith(t, 3)
	withEIO.Diagnostic = eio
	results = append(results, withEIO)
	for len(results) < config.MaxAttempts {
		results = append(results, exitWith(t, 3))
	}

	r := &scriptedRunner{results: results}
	var out bytes.Buffer
	c := &Controller{Runner: r, Out: &out}

	assert.Equal(t, exitcode.Error, c.Run([]string{"cmd", "a", "b"}))
	assert.Contains(t, out.String(), "Attempt #0 failure: errorString:\nfirst failure\n")
	assert.True(t, strings.HasSuffix(out.String(),
		"Permanently failed to execute: cmd a b\n"+
			"Last exception from #run_command was: \n Errno(EIO): read /dev/ptmx: input/output error\n"))
}

func TestController_ExecutionErrorIsRetried(t *testing.T) {
	boom := errors.New("boom")
	r := &scriptedRunner{results: []runner.Result{
		{Kind: runner.ExecutionError, ExitCode: 1, Err: boom, Diagnostic: boom},
		exitWith(t, 0),
	}}
	var out bytes.Buffer
	c := &Controller{Runner: r, Out: &out}

	assert.Equal(t, exitcode.Success, c.Run([]string{"cmd"}))
	assert.Equal(t, 2, r.calls)
}

func TestController_PassesCommandUnchanged(t *testing.T) {
	r := &scriptedRunner{results: []runner.Result{exitWith(t, 1), exitWith(t, 0)}}
	c := &Controller{Runner: r, Out: &bytes.Buffer{}}

	argv := []string{"prog", "--and", "your", "--args"}
	c.Run(argv)

	require.Len(t, r.argv, 2)
	for _, got := range r.argv {
		assert.Equal(t, []string{"prog", "--and", "your", "--args"}, got)
	}
}

func TestController_Idempotent(t *testing.T) {
	for i := 0; i < 3; i++ {
		r := &scriptedRunner{results: []runner.Result{exitWith(t, 0)}}
		c := &Controller{Runner: r, Out: &bytes.Buffer{}}
		assert.Equal(t, exitcode.Success, c.Run([]string{"true"}))
		assert.Equal(t, 1, r.calls)
	}
}

func TestController_EmptyCommand(t *testing.T) {
	r := &scriptedRunner{results: []runner.Result{exitWith(t, 0)}}
	c := &Controller{Runner: r, Out: &bytes.Buffer{}}
	assert.Equal(t, exitcode.Error, c.Run(nil))
	assert.Equal(t, 0, r.calls)
}

func TestController_WithPTYRunner(t *testing.T) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	ptmx.Close()
	tty.Close()

	t.Run("missing executable", func(t *testing.T) {
		var out bytes.Buffer
		c := &Controller{Runner: &runner.PTYRunner{Out: &out}, Out: &out}

		assert.Equal(t, exitcode.Error, c.Run([]string{"with-retry-does-not-exist-12345"}))
		assert.Equal(t, "with-retry-does-not-exist-12345: command not found\n", out.String())
	})

	t.Run("always exits 2", func(t *testing.T) {
		var out bytes.Buffer
		c := &Controller{Runner: &runner.PTYRunner{Out: &out}, Out: &out}

		assert.Equal(t, exitcode.Error, c.Run([]string{"sh", "-c", "exit 2"}))
		assert.Equal(t, config.MaxAttempts, attemptLines(out.String()))
		assert.Contains(t, out.String(), "Attempt #9 failure: ExitError:\nexit status 2\n")
		assert.Contains(t, out.String(), "Permanently failed to execute: sh -c exit 2\n")
	})

	t.Run("prints then succeeds", func(t *testing.T) {
		var out bytes.Buffer
		c := &Controller{Runner: &runner.PTYRunner{Out: &out}, Out: &out}

		assert.Equal(t, exitcode.Success, c.Run([]string{"sh", "-c", "echo A"}))
		assert.Contains(t, out.String(), "A")
		assert.Zero(t, attemptLines(out.String()))
	})
}
