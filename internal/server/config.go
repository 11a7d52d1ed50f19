package server

import "time"

// Config holds the tunable settings for a server session
type Config struct {
	Name    string
	Version string

	// Security policy inputs
	AllowedPaths     []string
	AllowedCommands  []string
	BlockedCommands  []string
	EnableShellTools bool

	// Admission control
	MaxConcurrentRequests int
	RequestTimeout        time.Duration

	// Result cache
	CacheTTL time.Duration

	// Logging
	LogLevel string
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Name:                  "mcp-tool-server",
		Version:               "1.0.0",
		BlockedCommands:       []string{"rm -rf /", "mkfs", "dd if="},
		MaxConcurrentRequests: 10,
		RequestTimeout:        60 * time.Second,
		CacheTTL:              30 * time.Second,
		LogLevel:              "INFO",
	}
}
