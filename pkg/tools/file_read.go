package tools

import (
	"context"
	"os"
)

// DefaultMaxReadSize caps file_read to 10MB so a single call cannot pin
// arbitrary amounts of memory.
const DefaultMaxReadSize = 10_000_000

// FileReadTool reads file contents from an allowed path
type FileReadTool struct {
	maxSize int64
}

// NewFileReadTool creates a file_read tool. maxSize <= 0 uses the default.
func NewFileReadTool(maxSize int64) *FileReadTool {
	if maxSize <= 0 {
		maxSize = DefaultMaxReadSize
	}
	return &FileReadTool{maxSize: maxSize}
}

func (t *FileReadTool) Name() string { return "file_read" }

func (t *FileReadTool) Description() string {
	return "Read the contents of a file"
}

func (t *FileReadTool) Parameters() []Parameter {
	return []Parameter{
		{
			Name:        "path",
			Type:        TypeString,
			Description: "Path to the file to read",
			Required:    true,
		},
	}
}

func (t *FileReadTool) Capability() Capability {
	return Capability{Kind: CapabilityFilesystem, PathArg: "path"}
}

func (t *FileReadTool) Execute(ctx context.Context, arguments map[string]interface{}) *Result {
	path, _ := arguments["path"].(string)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrorResult("file not found: %s", path)
		}
		return ErrorResult("cannot stat file: %v", err)
	}

	if info.IsDir() {
		return ErrorResult("not a file: %s", path)
	}

	if info.Size() > t.maxSize {
		return ErrorResult("file too large: %d bytes (max: %d)", info.Size(), t.maxSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ErrorResult("failed to read file: %v", err)
	}

	return TextResult(string(content))
}
