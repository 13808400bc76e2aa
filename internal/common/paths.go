package common

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CleanPath sanitizes a path, rejects directory traversal and makes it absolute
func CleanPath(path string) (string, error) {
	if strings.Contains(filepath.ToSlash(path), "../") || strings.HasSuffix(path, "..") {
		return "", fmt.Errorf("invalid path %q: contains directory traversal", path)
	}

	cleaned := filepath.Clean(path)
	if !filepath.IsAbs(cleaned) {
		abs, err := filepath.Abs(cleaned)
		if err != nil {
			return "", fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		cleaned = abs
	}

	return cleaned, nil
}

// Within joins key onto base and ensures the result stays inside base
func Within(base, key string) (string, error) {
	cleanedBase, err := CleanPath(base)
	if err != nil {
		return "", err
	}

	joined := filepath.Join(cleanedBase, filepath.FromSlash(key))
	if joined != cleanedBase && !strings.HasPrefix(joined, cleanedBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside %s", key, cleanedBase)
	}

	return joined, nil
}
