// Package security implements the policy gates evaluated before any
// path- or command-sensitive tool runs.
//
// Both gates are side-effect free and fail closed:
//   - The path gate resolves the requested path to canonical absolute form
//     and requires it to equal or descend from a configured allowed root.
//     An empty allowlist denies every path-based tool.
//   - The command gate requires the leading token to exactly match an
//     allowlist entry when an allowlist is configured; otherwise any
//     substring match against the block list denies the command, so extra
//     arguments cannot be used to slip past a blocked phrase.
//
// Denials carry a generic message; the offending path or command is only
// attached as error context for the server log, never for the wire.
package security

import (
	"os"
	"path/filepath"
	"strings"

	"mcp-tool-server/pkg/errors"
)

// Policy holds the immutable security configuration for one server instance.
type Policy struct {
	allowedPaths    []string
	allowedCommands []string
	blockedCommands []string
}

// NewPolicy creates a policy. Allowed roots are canonicalized once here so
// per-request checks only canonicalize the requested path.
func NewPolicy(allowedPaths, allowedCommands, blockedCommands []string) *Policy {
	roots := make([]string, 0, len(allowedPaths))
	for _, p := range allowedPaths {
		if p == "" {
			continue
		}
		canonical, err := canonicalize(p)
		if err != nil {
			// An unresolvable root can never match, so it is dropped;
			// fewer roots only makes the gate stricter.
			continue
		}
		roots = append(roots, canonical)
	}

	return &Policy{
		allowedPaths:    roots,
		allowedCommands: append([]string(nil), allowedCommands...),
		blockedCommands: append([]string(nil), blockedCommands...),
	}
}

// CheckPath validates that path resolves inside one of the allowed roots.
func (p *Policy) CheckPath(path string) error {
	if path == "" {
		return pathDenied(path, "empty path")
	}
	if len(p.allowedPaths) == 0 {
		return pathDenied(path, "no allowed paths configured")
	}

	canonical, err := canonicalize(path)
	if err != nil {
		return pathDenied(path, "path resolution failed")
	}

	for _, root := range p.allowedPaths {
		if canonical == root || strings.HasPrefix(canonical, root+string(filepath.Separator)) {
			return nil
		}
	}

	return pathDenied(path, "path outside allowed roots")
}

// CheckCommand validates a shell command against the allow/block lists.
func (p *Policy) CheckCommand(command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return commandDenied(command, "empty command")
	}

	if len(p.allowedCommands) > 0 {
		base := fields[0]
		for _, allowed := range p.allowedCommands {
			if base == allowed {
				return nil
			}
		}
		return commandDenied(command, "command not in allow list")
	}

	for _, blocked := range p.blockedCommands {
		if blocked != "" && strings.Contains(command, blocked) {
			return commandDenied(command, "command matches block list")
		}
	}

	return nil
}

// AllowedPaths returns a copy of the canonicalized allowed roots.
func (p *Policy) AllowedPaths() []string {
	return append([]string(nil), p.allowedPaths...)
}

// canonicalize resolves a path to canonical absolute form. Symlinks are
// resolved only when the target exists, so that tools writing new files can
// still be gated.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	// Target does not exist yet; resolve the nearest existing ancestor so a
	// symlinked parent cannot escape an allowed root.
	dir, base := filepath.Split(abs)
	dir = filepath.Clean(dir)
	if dir == abs {
		return abs, nil
	}
	resolvedDir, err := canonicalize(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}

func pathDenied(path, reason string) error {
	return errors.NewSecurityError(errors.ErrCodePathDenied, "access denied", nil).
		WithContext("path", path).
		WithContext("reason", reason)
}

func commandDenied(command, reason string) error {
	return errors.NewSecurityError(errors.ErrCodeCommandDenied, "command not allowed", nil).
		WithContext("command", command).
		WithContext("reason", reason)
}
