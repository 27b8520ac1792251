package buildpipeline

import (
	"path/filepath"
	"sort"
	"strings"
)

func normalizeProgressFile(file, baseDir string) string {
	if file == "" {
		return ""
	}
	path := filepath.Clean(file)
	base := strings.TrimSpace(baseDir)
	if base != "" {
		if abs, err := filepath.Abs(base); err == nil {
			base = abs
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if rel, err := filepath.Rel(base, path); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	return filepath.ToSlash(path)
}

// normalizeProgressFiles returns the sorted, de-duplicated display names of files.
func normalizeProgressFiles(files []string, baseDir string) []string {
	if len(files) == 0 {
		return files
	}
	normalized := make([]string, 0, len(files))
	seen := make(map[string]struct{}, len(files))
	for _, file := range files {
		path := normalizeProgressFile(file, baseDir)
		if path == "" {
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		normalized = append(normalized, path)
	}
	sort.Strings(normalized)
	return normalized
}

// ProgressFiles lists the display names Compile reports for paths, so a
// progress UI can lay out its rows before the first event arrives.
func ProgressFiles(baseDir string, files []string) []string {
	return normalizeProgressFiles(files, baseDir)
}
