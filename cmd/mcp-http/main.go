// Command mcp-http serves the MCP tool server over HTTP.
package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"mcp-tool-server/internal/server"
)

func main() {
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

	token := os.Getenv("MCP_TOKEN")
	if token == "" {
		log.Println("WARN: MCP_TOKEN not set; endpoints will be open. Set MCP_TOKEN to secure.")
	}

	mcpServer := server.NewMCPServer(config)
	defer mcpServer.Close()
	handler := server.NewHTTPHandler(mcpServer, server.HTTPConfig{Token: token})

	port := getEnv("PORT", "3000")
	log.Printf("Starting MCP HTTP server on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
