// Package retry runs a command repeatedly until it succeeds or exhausts its
// attempts, reporting each failure as it happens.
package retry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/CodexForgeBR/with-retry/internal/config"
	"github.com/CodexForgeBR/with-retry/internal/exitcode"
	"github.com/CodexForgeBR/with-retry/internal/logging"
	"github.com/CodexForgeBR/with-retry/internal/runner"
)

var (
	// ErrCommandNotFound stops the loop: a missing executable will not appear
	// on a later attempt.
	ErrCommandNotFound = errors.New("command not found")
	// errAttemptFailed marks a single failed, retryable attempt.
	errAttemptFailed = errors.New("attempt failed")
)

// Controller drives up to config.MaxAttempts attempts of one command.
type Controller struct {
	Runner runner.Runner
	// Out receives attempt reports. Defaults to os.Stdout.
	Out io.Writer
}

// Run executes argv until it succeeds, is found to be missing, or fails
// config.MaxAttempts times, and returns the process exit code to use.
func (c *Controller) Run(argv []string) int {
	if len(argv) == 0 {
		return exitcode.Error
	}

	var last error
	attempt := 0
	op := func() error {
		var err error
		last, err = c.step(attempt, argv, last)
		attempt++
		return err
	}

	policy := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(config.MaxAttempts-1))
	err := backoff.Retry(op, policy)

	code := exitcode.Success
	switch {
	case err == nil:
	case errors.Is(err, ErrCommandNotFound):
		fmt.Fprintf(c.out(), "%s: command not found\n", argv[0])
		code = exitcode.Error
	default:
		c.reportPermanentFailure(argv, last)
		code = exitcode.Error
	}
	logging.Debugf("%s: %s after %d attempt(s)", argv[0], exitcode.Name(code), attempt)
	return code
}

// step performs attempt i. It takes the most recent diagnostic seen so far
// and returns it, replaced by this attempt's diagnostic if there is one,
// alongside the error that tells the backoff loop what to do next.
func (c *Controller) step(i int, argv []string, last error) (diag error, err error) {
	logging.Debugf("attempt #%d: %s", i, strings.Join(argv, " "))
	start := time.Now()

	res := c.Runner.Run(argv)

	logging.Debugf("attempt #%d: %s after %s", i, res.Kind, logging.FormatDuration(int(time.Since(start).Seconds())))

	switch res.Kind {
	case runner.Success:
		return last, nil
	case runner.NotFound:
		return last, backoff.Permanent(fmt.Errorf("%s: %w", argv[0], ErrCommandNotFound))
	}

	if res.Diagnostic != nil {
		last = res.Diagnostic
	}
	kind, desc := res.Describe()
	fmt.Fprintf(c.out(), "Attempt #%d failure: %s:\n%s\n", i, kind, desc)
	return last, fmt.Errorf("attempt #%d: %w", i, errAttemptFailed)
}

func (c *Controller) reportPermanentFailure(argv []string, last error) {
	w := c.out()
	fmt.Fprintf(w, "Permanently failed to execute: %s\n", strings.Join(argv, " "))
	if last != nil {
		fmt.Fprintf(w, "Last exception from #run_command was: \n %s: %s\n", runner.ErrorKind(last), last.Error())
	}
}

func (c *Controller) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}
