// Command mcp-server runs the MCP tool server over stdio.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mcp-tool-server/internal/server"
	"mcp-tool-server/internal/transport"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, closing session...")
		cancel()
	}()

	config := configFromEnv()
	mcpServer := server.NewMCPServer(config)

	// stdout carries the protocol; all logging goes to stderr
	stdio := transport.NewStdioTransport(os.Stdin, os.Stdout, nil)

	if err := mcpServer.Serve(ctx, stdio); err != nil && err != context.Canceled {
		log.Printf("MCP server error: %v", err)
		os.Exit(1)
	}
}

// configFromEnv builds the server configuration from environment
// variables, falling back to defaults.
func configFromEnv() *server.Config {
	config := server.DefaultConfig()

	if paths := splitCSV(os.Getenv("MCP_ALLOWED_PATHS")); len(paths) > 0 {
		config.AllowedPaths = paths
	}
	if commands := splitCSV(os.Getenv("MCP_ALLOWED_COMMANDS")); len(commands) > 0 {
		config.AllowedCommands = commands
	}
	if blocked := splitCSV(os.Getenv("MCP_BLOCKED_COMMANDS")); len(blocked) > 0 {
		config.BlockedCommands = blocked
	}
	if os.Getenv("MCP_ENABLE_SHELL") == "true" {
		config.EnableShellTools = true
	}
	if n := getEnvInt("MCP_MAX_CONCURRENT", 0); n > 0 {
		config.MaxConcurrentRequests = n
	}
	if ms := getEnvInt("MCP_REQUEST_TIMEOUT_MS", 0); ms > 0 {
		config.RequestTimeout = time.Duration(ms) * time.Millisecond
	}
	if level := os.Getenv("MCP_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}

	return config
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
