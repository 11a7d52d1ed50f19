package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultShellTimeout bounds a single command when the caller does not
	// pass an explicit timeout.
	DefaultShellTimeout = 30 * time.Second

	// MaxShellTimeout is the hard upper bound for a requested timeout.
	MaxShellTimeout = 300 * time.Second
)

// ShellTool executes shell commands. Command admission is decided by the
// security policy before this tool ever runs; the tool itself only bounds
// and captures the execution.
type ShellTool struct {
	workingDir string
}

// NewShellTool creates a shell tool. workingDir may be empty to inherit the
// process working directory.
func NewShellTool(workingDir string) *ShellTool {
	return &ShellTool{workingDir: workingDir}
}

func (t *ShellTool) Name() string { return "shell" }

func (t *ShellTool) Description() string {
	return "Execute a shell command"
}

func (t *ShellTool) Parameters() []Parameter {
	return []Parameter{
		{
			Name:        "command",
			Type:        TypeString,
			Description: "The command to execute",
			Required:    true,
		},
		{
			Name:        "timeout",
			Type:        TypeInteger,
			Description: "Timeout in seconds",
			Default:     float64(DefaultShellTimeout / time.Second),
		},
	}
}

func (t *ShellTool) Capability() Capability {
	return Capability{Kind: CapabilitySubprocess, CommandArg: "command"}
}

func (t *ShellTool) Execute(ctx context.Context, arguments map[string]interface{}) *Result {
	command, _ := arguments["command"].(string)

	timeout := DefaultShellTimeout
	if raw, ok := arguments["timeout"].(float64); ok && raw > 0 {
		timeout = time.Duration(raw) * time.Second
		if timeout > MaxShellTimeout {
			timeout = MaxShellTimeout
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.workingDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return ErrorResult("command timed out after %s", timeout)
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += fmt.Sprintf("\n[stderr]\n%s", stderr.String())
	}
	output = strings.TrimRight(output, "\n")

	if err != nil {
		result := ErrorResult("command failed: %v", err)
		if output != "" {
			result.Content = []ContentBlock{{Type: "text", Text: output}}
		}
		return result
	}

	return TextResult(output)
}
