package security

import (
	"os"
	"path/filepath"
	"testing"

	"mcp-tool-server/pkg/errors"
)

func TestCheckPathAllowedRoot(t *testing.T) {
	root := t.TempDir()
	policy := NewPolicy([]string{root}, nil, nil)

	inside := filepath.Join(root, "sub", "file.txt")
	if err := policy.CheckPath(inside); err != nil {
		t.Errorf("Expected path inside root to be allowed, got %v", err)
	}

	if err := policy.CheckPath(root); err != nil {
		t.Errorf("Expected the root itself to be allowed, got %v", err)
	}
}

func TestCheckPathOutsideRoot(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	policy := NewPolicy([]string{root}, nil, nil)

	if err := policy.CheckPath(filepath.Join(other, "file.txt")); err == nil {
		t.Error("Expected path outside root to be denied")
	}
}

func TestCheckPathPrefixBoundary(t *testing.T) {
	// /tmp/foo must not admit /tmp/foobar
	base := t.TempDir()
	root := filepath.Join(base, "foo")
	sibling := filepath.Join(base, "foobar")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(sibling, 0o755); err != nil {
		t.Fatal(err)
	}

	policy := NewPolicy([]string{root}, nil, nil)

	if err := policy.CheckPath(filepath.Join(sibling, "x")); err == nil {
		t.Error("Expected sibling directory sharing a name prefix to be denied")
	}
}

func TestCheckPathTraversal(t *testing.T) {
	root := t.TempDir()
	policy := NewPolicy([]string{root}, nil, nil)

	escape := filepath.Join(root, "..", "elsewhere", "secret")
	if err := policy.CheckPath(escape); err == nil {
		t.Error("Expected dot-dot traversal out of root to be denied")
	}
}

func TestCheckPathEmptyAllowlistDeniesAll(t *testing.T) {
	policy := NewPolicy(nil, nil, nil)

	if err := policy.CheckPath(t.TempDir()); err == nil {
		t.Error("Expected every path to be denied with no allowed roots")
	}
}

func TestCheckPathEmptyPath(t *testing.T) {
	policy := NewPolicy([]string{t.TempDir()}, nil, nil)

	if err := policy.CheckPath(""); err == nil {
		t.Error("Expected empty path to be denied")
	}
}

func TestCheckPathSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	policy := NewPolicy([]string{root}, nil, nil)

	if err := policy.CheckPath(filepath.Join(link, "file.txt")); err == nil {
		t.Error("Expected symlink escaping the root to be denied")
	}
}

func TestCheckPathNonexistentInsideRoot(t *testing.T) {
	root := t.TempDir()
	policy := NewPolicy([]string{root}, nil, nil)

	// File does not exist yet; write tools still need a gate decision
	if err := policy.CheckPath(filepath.Join(root, "new", "file.txt")); err != nil {
		t.Errorf("Expected nonexistent path inside root to be allowed, got %v", err)
	}
}

func TestCheckPathDenialIsGeneric(t *testing.T) {
	policy := NewPolicy(nil, nil, nil)

	err := policy.CheckPath("/etc/passwd")
	if err == nil {
		t.Fatal("Expected denial")
	}

	structuredErr, ok := err.(*errors.StructuredError)
	if !ok {
		t.Fatalf("Expected StructuredError, got %T", err)
	}
	if structuredErr.Message != "access denied" {
		t.Errorf("Expected generic message, got %q", structuredErr.Message)
	}
	mcpErr := structuredErr.ToMCPError()
	if mcpErr.Code != errors.MCPCodePermissionDenied {
		t.Errorf("Expected code %d, got %d", errors.MCPCodePermissionDenied, mcpErr.Code)
	}
	if mcpErr.Data != nil {
		t.Error("Expected security error to carry no data on the wire")
	}
}

func TestCheckCommandBlocklist(t *testing.T) {
	policy := NewPolicy(nil, nil, []string{"rm -rf /", "mkfs", "dd if="})

	cases := []struct {
		command string
		allowed bool
	}{
		{"ls -la", true},
		{"rm -rf /", false},
		{"echo safe && rm -rf / --no-preserve-root", false},
		{"mkfs.ext4 /dev/sda1", false},
		{"dd if=/dev/zero of=/dev/sda", false},
		{"git status", true},
	}

	for _, tc := range cases {
		err := policy.CheckCommand(tc.command)
		if tc.allowed && err != nil {
			t.Errorf("Expected command %q to be allowed, got %v", tc.command, err)
		}
		if !tc.allowed && err == nil {
			t.Errorf("Expected command %q to be denied", tc.command)
		}
	}
}

func TestCheckCommandBlocklistSubstring(t *testing.T) {
	policy := NewPolicy(nil, nil, []string{"rm -rf /"})

	// Substring matching catches the phrase anywhere in the command,
	// including with a longer target path
	if err := policy.CheckCommand("cd /tmp && rm -rf /tmp/x"); err == nil {
		t.Error("Expected embedded blocked phrase to be denied")
	}
	if err := policy.CheckCommand("true; rm -rf / "); err == nil {
		t.Error("Expected embedded blocked phrase to be denied")
	}
	if err := policy.CheckCommand("rm file.txt"); err != nil {
		t.Errorf("Expected plain rm of a file to be allowed, got %v", err)
	}
}

func TestCheckCommandAllowlist(t *testing.T) {
	policy := NewPolicy(nil, []string{"ls", "cat"}, []string{"rm"})

	if err := policy.CheckCommand("ls -la /tmp"); err != nil {
		t.Errorf("Expected allowlisted leading token, got %v", err)
	}
	if err := policy.CheckCommand("cat file.txt"); err != nil {
		t.Errorf("Expected allowlisted leading token, got %v", err)
	}
	// Allowlist takes precedence: anything not listed is denied
	if err := policy.CheckCommand("echo hello"); err == nil {
		t.Error("Expected non-allowlisted command to be denied")
	}
	// Exact token match only
	if err := policy.CheckCommand("lsblk"); err == nil {
		t.Error("Expected prefix of an allowlisted token to be denied")
	}
}

func TestCheckCommandEmpty(t *testing.T) {
	policy := NewPolicy(nil, nil, nil)

	if err := policy.CheckCommand(""); err == nil {
		t.Error("Expected empty command to be denied")
	}
	if err := policy.CheckCommand("   "); err == nil {
		t.Error("Expected whitespace-only command to be denied")
	}
}

func TestNewPolicyDropsUnresolvableRoots(t *testing.T) {
	root := t.TempDir()
	policy := NewPolicy([]string{root, ""}, nil, nil)

	if got := len(policy.AllowedPaths()); got != 1 {
		t.Errorf("Expected 1 canonical root, got %d", got)
	}
}
