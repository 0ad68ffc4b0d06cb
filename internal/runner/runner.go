// Package runner executes a single command attached to a pseudo-terminal and
// classifies how it ended.
//
// The child sees a real terminal on stdin, stdout and stderr, so programs that
// switch to block buffering or drop colors when writing to a pipe behave as
// they would interactively. Everything the child writes is forwarded line by
// line to the runner's output as it arrives.
package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"github.com/mattn/go-isatty"

	"github.com/CodexForgeBR/with-retry/internal/logging"
)

// Runner executes one attempt of a command.
type Runner interface {
	Run(argv []string) Result
}

// PTYRunner runs commands on a freshly allocated pty per attempt.
type PTYRunner struct {
	// Out receives the child's output. Defaults to os.Stdout.
	Out io.Writer
	// Stdin is consulted for the terminal size to copy onto the pty.
	// Defaults to os.Stdin.
	Stdin *os.File
}

// Compile-time interface check.
var _ Runner = (*PTYRunner)(nil)

// Run starts argv on a new pty, forwards its output until the stream ends,
// reaps the child and returns the classified result. All pty and process
// resources are released before Run returns.
func (r *PTYRunner) Run(argv []string) Result {
	if len(argv) == 0 {
		return failure(errors.New("empty command"))
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		return failure(fmt.Errorf("open pty: %w", err))
	}
	defer ptmx.Close()

	r.inheritSize(ptmx)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	startErr := cmd.Start()
	// The child holds its own copy of the slave. Ours must go so the master
	// reports end-of-stream once the child exits.
	tty.Close()
	if startErr != nil {
		if IsNotFound(startErr) {
			return Result{Kind: NotFound, ExitCode: 1, Err: startErr}
		}
		return failure(fmt.Errorf("start %s: %w", argv[0], startErr))
	}

	streamErr := Forward(r.out(), ptmx)
	waitErr := cmd.Wait()

	return resolve(cmd.ProcessState, waitErr, streamErr)
}

func (r *PTYRunner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *PTYRunner) inheritSize(ptmx *os.File) {
	stdin := r.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	if !isatty.IsTerminal(stdin.Fd()) {
		return
	}
	if err := pty.InheritSize(stdin, ptmx); err != nil {
		logging.Warn(fmt.Sprintf("inherit terminal size: %v", err))
	}
}

// Forward copies src to dst one line at a time, writing each line as soon as
// it is complete. A trailing line without a newline is written as-is when the
// stream ends. It returns nil on io.EOF and the read error otherwise.
//
// If dst stops accepting writes, the rest of src is drained and discarded so
// the writer on the other end never blocks, and the write error is returned.
func Forward(dst io.Writer, src io.Reader) error {
	br := bufio.NewReader(src)
	for {
		line, readErr := br.ReadBytes('\n')
		if len(line) > 0 {
			if _, err := dst.Write(line); err != nil {
				_, _ = io.Copy(io.Discard, br)
				return fmt.Errorf("forward output: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

// resolve turns the reaped process state and the errors seen along the way
// into a Result.
func resolve(state *os.ProcessState, waitErr, streamErr error) Result {
	var diag error
	if streamErr != nil {
		if !IsStreamClosed(streamErr) {
			logging.Warn(fmt.Sprintf("reading command output failed: %v", streamErr))
			return failure(fmt.Errorf("read output: %w", streamErr))
		}
		diag = streamErr
	}

	code, ok := exitStatus(state)
	if !ok {
		code = fallbackStatus(waitErr)
		logging.Debugf("exit status unresolved (wait error: %v); assuming %d", waitErr, code)
		if waitErr != nil {
			res := failure(fmt.Errorf("wait: %w", waitErr))
			res.ExitCode = code
			return res
		}
	}

	if code == 0 {
		return Result{Kind: Success, Diagnostic: diag}
	}
	return Result{Kind: NonZeroExit, ExitCode: code, Err: waitErr, Diagnostic: diag}
}

// exitStatus extracts the exit code from a reaped process. A child killed by
// a signal reports 128+signal, as a shell would.
func exitStatus(state *os.ProcessState) (int, bool) {
	if state == nil {
		return 0, false
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), true
	}
	if code := state.ExitCode(); code >= 0 {
		return code, true
	}
	return 0, false
}

// fallbackStatus is used only when no process state exists at all: no error
// reads as success, anything else as a generic failure.
func fallbackStatus(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	return 1
}

func failure(err error) Result {
	return Result{Kind: ExecutionError, ExitCode: 1, Err: err, Diagnostic: err}
}
