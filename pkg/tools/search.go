package tools

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultMaxSearchResults caps the number of matches returned by one search
const DefaultMaxSearchResults = 100

// maxMatchLineLength truncates long matching lines in the output
const maxMatchLineLength = 200

// SearchMatch is one line matching the requested pattern
type SearchMatch struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// SearchTool searches for a regex pattern in files under an allowed path
type SearchTool struct {
	maxResults int
}

// NewSearchTool creates a search tool. maxResults <= 0 uses the default.
func NewSearchTool(maxResults int) *SearchTool {
	if maxResults <= 0 {
		maxResults = DefaultMaxSearchResults
	}
	return &SearchTool{maxResults: maxResults}
}

func (t *SearchTool) Name() string { return "search" }

func (t *SearchTool) Description() string {
	return "Search for a pattern in files (grep-like)"
}

func (t *SearchTool) Parameters() []Parameter {
	return []Parameter{
		{
			Name:        "pattern",
			Type:        TypeString,
			Description: "Regex pattern to search for",
			Required:    true,
		},
		{
			Name:        "path",
			Type:        TypeString,
			Description: "Directory or file to search in",
			Required:    true,
		},
		{
			Name:        "include",
			Type:        TypeString,
			Description: "File pattern to include (e.g., '*.go')",
			Default:     "*",
		},
		{
			Name:        "ignore_case",
			Type:        TypeBoolean,
			Description: "Case-insensitive search",
			Default:     false,
		},
	}
}

func (t *SearchTool) Capability() Capability {
	return Capability{Kind: CapabilityFilesystem, PathArg: "path"}
}

// Cacheable marks search results as servable from the result cache
func (t *SearchTool) Cacheable() bool { return true }

func (t *SearchTool) Execute(ctx context.Context, arguments map[string]interface{}) *Result {
	pattern, _ := arguments["pattern"].(string)
	path, _ := arguments["path"].(string)
	include, _ := arguments["include"].(string)
	ignoreCase, _ := arguments["ignore_case"].(bool)
	if include == "" {
		include = "*"
	}

	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return ErrorResult("invalid regex: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return ErrorResult("path not found: %s", path)
	}

	var matches []SearchMatch

	if !info.IsDir() {
		matches = t.searchFile(path, regex, matches)
	} else {
		filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil // unreadable entries are skipped
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				// Skip hidden directories
				if p != path && strings.HasPrefix(d.Name(), ".") {
					return fs.SkipDir
				}
				return nil
			}
			if ok, _ := filepath.Match(include, d.Name()); !ok {
				return nil
			}
			matches = t.searchFile(p, regex, matches)
			if len(matches) >= t.maxResults {
				return fs.SkipAll
			}
			return nil
		})
	}

	return JSONResult(map[string]interface{}{
		"matches":   matches,
		"count":     len(matches),
		"truncated": len(matches) >= t.maxResults,
	})
}

// searchFile appends matches from a single file, up to the result cap
func (t *SearchTool) searchFile(path string, regex *regexp.Regexp, matches []SearchMatch) []SearchMatch {
	f, err := os.Open(path)
	if err != nil {
		return matches
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if !regex.MatchString(line) {
			continue
		}
		if len(line) > maxMatchLineLength {
			line = line[:maxMatchLineLength]
		}
		matches = append(matches, SearchMatch{
			File:    path,
			Line:    lineNum,
			Content: strings.TrimRight(line, " \t"),
		})
		if len(matches) >= t.maxResults {
			break
		}
	}

	return matches
}
