package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePath rejects empty paths and paths that still contain directory
// traversal components after cleaning. Absolute paths are allowed; the
// config file and payload directories commonly live outside the working
// directory.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) ||
		strings.Contains(cleaned, string(filepath.Separator)+".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	return nil
}

// ValidatePathWithBase validates a relative path against a base directory
// and ensures the resolved path cannot escape it.
func ValidatePathWithBase(path, baseDir string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths not allowed under base directory: %s", path)
	}

	cleanBase := filepath.Clean(baseDir)
	cleanPath := filepath.Clean(filepath.Join(cleanBase, path))
	if cleanPath != cleanBase && !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", path)
	}

	return nil
}
