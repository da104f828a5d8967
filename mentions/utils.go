package mentions

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FormatDirectoryListing renders the immediate contents of a directory as a
// human-readable listing (directories first, then files, alphabetically
// within each group), matching format_directory_listing's shape exactly so
// an @mention of a directory can be dropped into a context block the same
// way a file's content would be.
func FormatDirectoryListing(path string) string {
	header := fmt.Sprintf("Directory: %s\n\n", path)

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsPermission(err) {
			return header + "(permission denied)"
		}
		return header + "(permission denied)"
	}
	if len(entries) == 0 {
		return header + "(empty directory)"
	}

	var dirs, files []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)

	var lines []string
	for _, d := range dirs {
		lines = append(lines, "  DIR  "+d)
	}
	for _, f := range files {
		lines = append(lines, "  FILE "+f)
	}

	return header + strings.Join(lines, "\n")
}

// withMarkdownFallback tries path first, then path+".md", returning the
// first one that exists on disk.
func withMarkdownFallback(path string) (string, bool) {
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	mdPath := path + ".md"
	if _, err := os.Stat(mdPath); err == nil {
		return mdPath, true
	}
	return "", false
}

// expandHome expands a leading "~" to the current user's home directory.
func expandHome(path string) string {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
