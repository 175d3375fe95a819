// Package pathutil confines user-supplied file paths to known directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutside is returned when a path resolves outside every allowed root.
var ErrOutside = errors.New("path is outside allowed directories")

// RedactPath shortens a path to .../<parent>/<base> for error messages.
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// Resolve returns the absolute form of path with symlinks evaluated on its
// deepest existing ancestor. Missing trailing components are kept as given.
func Resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	var tail []string
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			parts := append([]string{resolved}, tail...)
			return filepath.Join(parts...), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("cannot resolve %s: %w", RedactPath(abs), err)
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}

// Within reports whether path resolves to root or somewhere below it.
func Within(path, root string) (bool, error) {
	p, err := Resolve(path)
	if err != nil {
		return false, err
	}
	r, err := Resolve(root)
	if err != nil {
		return false, err
	}
	return p == r || strings.HasPrefix(p, r+string(os.PathSeparator)), nil
}

// ValidatePath rejects path unless it resolves inside one of roots.
func ValidatePath(path string, roots []string) error {
	switch {
	case path == "":
		return errors.New("path validation failed: path is empty")
	case len(roots) == 0:
		return errors.New("path validation failed: no allowed directories configured")
	case strings.ContainsRune(path, 0):
		return errors.New("path validation failed: path contains null byte")
	}

	for _, root := range roots {
		ok, err := Within(path, root)
		if err != nil {
			continue
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("path validation failed: %q: %w", RedactPath(path), ErrOutside)
}

// BackupDirs returns the directories backups may be written to or read
// from: <home>/backups plus any extra roots such as a grid output directory.
func BackupDirs(home string, extra ...string) []string {
	dirs := []string{filepath.Join(home, "backups")}
	for _, d := range extra {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
