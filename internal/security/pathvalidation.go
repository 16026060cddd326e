// Package security validates filesystem paths supplied on the command line.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// canonical resolves symlinks in path. When path does not exist yet the
// nearest existing ancestor is resolved and the remainder re-joined, so a
// symlinked parent cannot smuggle a new file elsewhere.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, err := filepath.Rel(dir, abs)
			if err != nil {
				return "", err
			}
			return filepath.Join(resolved, rel), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory returns an error if filePath resolves outside
// safeDir.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	path, err := canonical(filePath)
	if err != nil {
		return err
	}
	dir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	if dir, err = filepath.EvalSymlinks(dir); err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", safeDir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, safeDir)
	}
	return nil
}

// ValidatePathWithinAllowedDirs accepts filePath if it lies within any of
// allowedDirs.
func ValidatePathWithinAllowedDirs(filePath string, allowedDirs []string) error {
	if len(allowedDirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}
	for _, dir := range allowedDirs {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("path must be within one of %v", allowedDirs)
}

// ValidateOutputPath accepts paths under the working directory or the
// system temp directory. Plot output goes through it.
func ValidateOutputPath(filePath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	return ValidatePathWithinAllowedDirs(filePath, []string{cwd, os.TempDir()})
}
