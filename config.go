package vmjobs

import "time"

// Config holds configuration for the Dispatcher.
type Config struct {
	// ServiceName is the name callers must send as service_name. Empty
	// disables the check.
	ServiceName string

	// MaxActiveJobs bounds the number of background jobs executing at
	// once. Launches beyond the bound are rejected. Zero means unbounded.
	MaxActiveJobs int

	// LaunchRate limits launches per second. Zero disables the limit.
	LaunchRate float64

	// LaunchBurst is the burst size for LaunchRate.
	LaunchBurst int

	// ShutdownTimeout is the maximum time to wait for running jobs on stop.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ServiceName:     "vm",
		MaxActiveJobs:   0,
		LaunchRate:      0,
		LaunchBurst:     1,
		ShutdownTimeout: 30 * time.Second,
	}
}
