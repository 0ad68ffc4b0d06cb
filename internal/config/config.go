// Package config defines the with-retry configuration model and defaults.
//
// All settings come from command-line flags. The attempt limit is fixed and
// deliberately not exposed as a flag.
package config

// MaxAttempts is the number of times a failing command is run before the
// wrapper gives up.
const MaxAttempts = 10

// Config holds every CLI-level setting for with-retry.
type Config struct {
	// Verbose enables debug log lines on stderr.
	Verbose bool
	// NoColor disables ANSI colors in attempt reports and log lines.
	NoColor bool
}

// NewDefaultConfig returns a Config with built-in defaults.
func NewDefaultConfig() *Config {
	return &Config{}
}
