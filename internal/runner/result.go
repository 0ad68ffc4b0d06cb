package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Kind classifies the outcome of a single attempt.
type Kind int

const (
	Success        Kind = iota // Child exited 0
	NonZeroExit                // Child ran and exited nonzero or was killed by a signal
	NotFound                   // Executable missing or not executable; never retried
	ExecutionError             // Pty, start, read or wait failed for any other reason
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "Success"
	case NonZeroExit:
		return "NonZeroExit"
	case NotFound:
		return "NotFound"
	case ExecutionError:
		return "ExecutionError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Result is the outcome of one attempt.
//
// Err carries the failure for NonZeroExit (the *exec.ExitError, when there is
// one), NotFound and ExecutionError. Diagnostic carries a condition worth
// reporting after the fact even when the attempt itself succeeded, such as
// the pty closing under the reader once the child exits.
type Result struct {
	Kind       Kind
	ExitCode   int
	Err        error
	Diagnostic error
}

// Describe returns the error kind and description printed in attempt
// failure reports.
func (r Result) Describe() (kind, description string) {
	if r.Err == nil {
		return r.Kind.String(), fmt.Sprintf("exit status %d", r.ExitCode)
	}
	return ErrorKind(r.Err), r.Err.Error()
}

// ErrorKind names the most specific recognizable error in err's chain.
func ErrorKind(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "ExitError"
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if name := unix.ErrnoName(errno); name != "" {
			return "Errno(" + name + ")"
		}
		return fmt.Sprintf("Errno(%d)", int(errno))
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return "ExecError"
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return "PathError"
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return "SyscallError"
	}

	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	name := fmt.Sprintf("%T", err)
	name = strings.TrimPrefix(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// IsNotFound reports whether a start error means the executable is missing
// or cannot be executed. EPERM is not included: it comes from session or
// controlling-terminal setup in the child, not from the executable.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, syscall.EACCES)
}

// IsStreamClosed reports whether a read error from the pty master only means
// the slave side was closed by the finished child.
func IsStreamClosed(err error) bool {
	return errors.Is(err, syscall.EIO)
}
