package tools

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
)

// DefaultMaxGlobResults caps the number of paths returned by one glob
const DefaultMaxGlobResults = 1000

// GlobTool lists files matching a glob pattern, including ** for
// matching across directory levels.
type GlobTool struct {
	maxResults int
}

// NewGlobTool creates a glob tool. maxResults <= 0 uses the default.
func NewGlobTool(maxResults int) *GlobTool {
	if maxResults <= 0 {
		maxResults = DefaultMaxGlobResults
	}
	return &GlobTool{maxResults: maxResults}
}

func (t *GlobTool) Name() string { return "glob" }

func (t *GlobTool) Description() string {
	return "Find files matching a glob pattern"
}

func (t *GlobTool) Parameters() []Parameter {
	return []Parameter{
		{
			Name:        "pattern",
			Type:        TypeString,
			Description: "Glob pattern (supports ** for recursive matching)",
			Required:    true,
		},
		{
			Name:        "path",
			Type:        TypeString,
			Description: "Base directory to search from",
			Required:    true,
		},
	}
}

func (t *GlobTool) Capability() Capability {
	return Capability{Kind: CapabilityFilesystem, PathArg: "path"}
}

// Cacheable marks glob results as servable from the result cache
func (t *GlobTool) Cacheable() bool { return true }

func (t *GlobTool) Execute(ctx context.Context, arguments map[string]interface{}) *Result {
	pattern, _ := arguments["pattern"].(string)
	base, _ := arguments["path"].(string)

	segments := strings.Split(filepath.ToSlash(pattern), "/")

	var results []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(base, p)
		if relErr != nil {
			return nil
		}
		if matchSegments(segments, strings.Split(filepath.ToSlash(rel), "/")) {
			results = append(results, p)
			if len(results) >= t.maxResults {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return ErrorResult("glob cancelled: %v", ctx.Err())
	}

	return JSONResult(map[string]interface{}{
		"files":     results,
		"count":     len(results),
		"truncated": len(results) >= t.maxResults,
	})
}

// matchSegments matches path segments against pattern segments, where a
// "**" pattern segment matches zero or more path segments.
func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(path); i++ {
			if matchSegments(pattern[1:], path[i:]) {
				return true
			}
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	if ok, err := filepath.Match(pattern[0], path[0]); err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], path[1:])
}
