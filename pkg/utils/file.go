package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"storrent/pkg/types"
)

// ValidateDestinationPath ensures the destination path is valid for file creation
func ValidateDestinationPath(dstPath string) error {
	if dstPath == "" {
		return fmt.Errorf("destination path is required")
	}

	// Existing files are overwritten, existing directories are rejected
	if info, err := os.Stat(dstPath); err == nil {
		if info.IsDir() {
			return fmt.Errorf("destination path '%s' is a directory, please specify a file path", dstPath)
		}
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("cannot access destination path: %w", err)
	}

	filename := filepath.Base(dstPath)
	if filename == "." || filename == ".." || filename == string(filepath.Separator) {
		return fmt.Errorf("destination path '%s' does not specify a filename", dstPath)
	}

	return nil
}

// FormatFileSize formats file size in human readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// FilterDescriptors keeps the descriptors matching every whitespace separated
// keyword of key. Matching is case-insensitive against "<name> <readable size>".
// An empty key keeps everything.
func FilterDescriptors(files []types.FileDescriptor, key string) []types.FileDescriptor {
	keys := strings.Fields(strings.ToLower(key))
	if len(keys) == 0 {
		return files
	}

	filtered := make([]types.FileDescriptor, 0, len(files))
	for _, f := range files {
		haystack := strings.ToLower(f.Name + " " + FormatFileSize(f.Size))
		matched := true
		for _, k := range keys {
			if !strings.Contains(haystack, k) {
				matched = false
				break
			}
		}
		if matched {
			filtered = append(filtered, f)
		}
	}
	return filtered
}
