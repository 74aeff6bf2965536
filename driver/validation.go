package driver

import (
	"errors"
	"path/filepath"
	"strings"
)

// MaxFilesPerDirectory defines the maximum number of files loaded from one directory
const MaxFilesPerDirectory = 1000

// MaxColumnCount defines the maximum number of columns allowed in a table
const MaxColumnCount = 2000

// MaxValueLength defines the maximum length of a single field value
const MaxValueLength = 65536

var (
	// ErrTooManyFiles is returned when a directory contains too many files
	ErrTooManyFiles = errors.New("too many files in directory")

	// ErrTooManyColumns is returned when a file has too many columns
	ErrTooManyColumns = errors.New("too many columns")

	// ErrInvalidPath is returned when a path is invalid or potentially dangerous
	ErrInvalidPath = errors.New("invalid or dangerous path")
)

// ValidatePath rejects empty paths, NUL bytes, deep parent traversal and
// system directories.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrInvalidPath
	}
	if strings.Contains(path, "\x00") {
		return ErrInvalidPath
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") && !isLegitimateRelativePath(path) {
		return ErrInvalidPath
	}

	lowerPath := strings.ToLower(path)
	systemDirs := []string{
		"/etc/", "/proc/", "/sys/", "/dev/", "/boot/",
		"c:\\windows\\", "c:/windows/",
		"\\\\?\\", // UNC paths
	}
	for _, sysDir := range systemDirs {
		if strings.HasPrefix(lowerPath, sysDir) {
			return ErrInvalidPath
		}
	}
	return nil
}

// ValidateColumnCount checks if the number of columns is within acceptable limits
func ValidateColumnCount(columnCount int) error {
	if columnCount > MaxColumnCount {
		return ErrTooManyColumns
	}
	return nil
}

// ValidateFileCount checks if the number of files is within acceptable limits
func ValidateFileCount(fileCount int) error {
	if fileCount > MaxFilesPerDirectory {
		return ErrTooManyFiles
	}
	return nil
}

// ValidateFieldValue truncates overlong values and removes NUL bytes before
// a value is stored in SQLite.
func ValidateFieldValue(value string) string {
	if len(value) > MaxValueLength {
		value = value[:MaxValueLength]
	}
	return strings.ReplaceAll(value, "\x00", "")
}

// IsValidFileName reports whether a directory entry should be considered:
// hidden files and names with suspicious characters are skipped.
func IsValidFileName(fileName string) bool {
	if strings.HasPrefix(fileName, ".") {
		return false
	}
	return !strings.ContainsAny(fileName, "\x00<>:\"|?*")
}

// isLegitimateRelativePath allows at most three leading parent references
func isLegitimateRelativePath(path string) bool {
	cleanPath := filepath.Clean(path)
	if !strings.HasPrefix(cleanPath, "../") && !strings.HasPrefix(cleanPath, "..\\") {
		return true
	}

	parts := strings.FieldsFunc(cleanPath, func(c rune) bool {
		return c == '/' || c == '\\'
	})
	upLevels := 0
	for _, part := range parts {
		if part != ".." {
			break
		}
		upLevels++
	}
	return upLevels <= 3
}
