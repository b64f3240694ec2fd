// SPDX-License-Identifier: Apache-2.0

package service

import "strings"

// NormalizePath trims whitespace and surrounding slashes. Paths are
// case-sensitive and '/'-separated; the empty result means the path is
// unusable and the caller fails ErrPathRequired.
func NormalizePath(value string) string {
	return strings.Trim(strings.TrimSpace(value), "/")
}

// BasenameFromPath returns the right-most non-empty segment.
func BasenameFromPath(path string) string {
	trimmed := strings.Trim(path, "/")
	parts := strings.Split(trimmed, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return path
}

// ReplaceBasename swaps the last segment of path for name.
func ReplaceBasename(path, name string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return name
	}
	parts := strings.Split(trimmed, "/")
	parts[len(parts)-1] = name
	return strings.Join(parts, "/")
}

// NormalizePathAndName resolves the effective (path, name) of an item after
// an update that may rename via either a new path or a new basename. A new
// name containing slashes contributes only its basename.
func NormalizePathAndName(currentPath string, newPath, newName *string) (string, string) {
	path := currentPath
	if newPath != nil {
		if p := NormalizePath(*newPath); p != "" {
			path = p
		}
	}
	if newName != nil {
		if n := strings.TrimSpace(*newName); n != "" {
			if strings.Contains(n, "/") {
				n = BasenameFromPath(n)
			}
			path = ReplaceBasename(path, n)
		}
	}
	return path, BasenameFromPath(path)
}

// PrefixMatch reports whether path sits at or under prefix. An empty
// prefix matches everything.
func PrefixMatch(prefix, path string) bool {
	if prefix == "" {
		return true
	}
	path = NormalizePath(path)
	prefix = NormalizePath(prefix)
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
