package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileWriteTool writes content to a file under an allowed path
type FileWriteTool struct{}

// NewFileWriteTool creates a file_write tool
func NewFileWriteTool() *FileWriteTool {
	return &FileWriteTool{}
}

func (t *FileWriteTool) Name() string { return "file_write" }

func (t *FileWriteTool) Description() string {
	return "Write content to a file"
}

func (t *FileWriteTool) Parameters() []Parameter {
	return []Parameter{
		{
			Name:        "path",
			Type:        TypeString,
			Description: "Path to the file to write",
			Required:    true,
		},
		{
			Name:        "content",
			Type:        TypeString,
			Description: "Content to write",
			Required:    true,
		},
		{
			Name:        "mode",
			Type:        TypeString,
			Description: "Write mode: 'write' (overwrite) or 'append'",
			Default:     "write",
			Enum:        []interface{}{"write", "append"},
		},
	}
}

func (t *FileWriteTool) Capability() Capability {
	return Capability{Kind: CapabilityFilesystem, PathArg: "path"}
}

func (t *FileWriteTool) Execute(ctx context.Context, arguments map[string]interface{}) *Result {
	path, _ := arguments["path"].(string)
	content, _ := arguments["content"].(string)
	mode, _ := arguments["mode"].(string)

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if mode == "append" {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}

	// Create parent directories if needed
	if parent := filepath.Dir(path); parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return ErrorResult("failed to create parent directory: %v", err)
		}
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return ErrorResult("failed to open file: %v", err)
	}

	n, err := f.WriteString(content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ErrorResult("failed to write file: %v", err)
	}

	return TextResult(fmt.Sprintf("Written %d bytes to %s", n, path))
}
