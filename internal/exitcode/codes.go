// Package exitcode defines named exit codes for the with-retry CLI.
//
// The wrapper only ever reports two outcomes: the wrapped command eventually
// succeeded, or it did not (missing executable, usage error, or ten failed
// attempts).
package exitcode

const (
	Success = 0 // Wrapped command exited 0 on some attempt
	Error   = 1 // Usage error, command not found, or permanent failure
)

// Name returns the human-readable name for the given exit code.
// Unknown codes return "unknown".
func Name(code int) string {
	switch code {
	case Success:
		return "Success"
	case Error:
		return "Error"
	default:
		return "unknown"
	}
}
