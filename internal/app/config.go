package app

import (
	"io"
	"os"

	"integctl/internal/config"
	"integctl/internal/spec"
)

// Config holds the command line settings of one invocation.
type Config struct {
	// Debug switches logging to debug level.
	Debug bool
	// ConfigPath selects a single configuration file instead of the
	// layered lookup.
	ConfigPath string
	// Target overrides the configured default target.
	Target spec.Target
	// RequireCluster fails bootstrap when no cluster connection can be set up.
	RequireCluster bool
	// Unique appends a random suffix to application names.
	Unique bool
	// Hold keeps a ready application running until interrupted.
	Hold bool
	// Output receives console reporting and live application output.
	Output io.Writer
	// Quiet suppresses the live application output on Output.
	Quiet bool

	// IntegctlConfig is the loaded configuration, set during bootstrap.
	IntegctlConfig *config.IntegctlConfig
}

// NewConfig creates a configuration writing to stdout.
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
		Output:     os.Stdout,
	}
}
