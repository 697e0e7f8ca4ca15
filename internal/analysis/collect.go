package analysis

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"venv":         true,
	".venv":        true,
	".git":         true,
	"__pycache__":  true,
	"node_modules": true,
	"dist":         true,
	".idea":        true,
	".vscode":      true,
	"build":        true,
	"target":       true,
}

// allowedExts are the extensions considered for directory analysis.
var allowedExts = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".html": true, ".css": true,
	".md": true, ".txt": true, ".json": true, ".yaml": true, ".yml": true,
	".csv": true, ".xml": true, ".java": true, ".go": true, ".c": true,
	".cpp": true, ".h": true, ".hpp": true, ".sh": true, ".bash": true,
	".env": true, ".toml": true, ".ini": true, ".log": true,
}

// extension returns the lowercased suffix of name. A leading dot does not
// start an extension, so ".env" has none while "prod.env" has ".env".
func extension(name string) string {
	trimmed := strings.TrimLeft(name, ".")
	i := strings.LastIndexByte(trimmed, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(trimmed[i:])
}

// CollectFiles returns the analyzable files under dir in lexical order.
// Directories in the skip list are pruned when they appear below dir.
func (o *Orchestrator) CollectFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &Error{Msg: fmt.Sprintf("Directory not found: %s", dir), Err: err}
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			o.logger.Debug("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == dir {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDirs[d.Name()] || o.ignored(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !allowedExts[extension(d.Name())] || o.ignored(rel) {
			return nil
		}
		if !isRegular(path, d) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, &Error{Msg: fmt.Sprintf("Failed to read directory %s", dir), Err: err}
	}
	return files, nil
}

func (o *Orchestrator) ignored(rel string) bool {
	for _, pattern := range o.ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// isRegular follows symlinks so linked files count, but linked directories are never walked.
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// validatePatterns rejects malformed ignore globs up front.
func validatePatterns(patterns []string) error {
	var errs []error
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("invalid ignore pattern %q", p))
		}
	}
	return errors.Join(errs...)
}
