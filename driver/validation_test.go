package driver

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		wantErr  bool
		expected error
	}{
		{
			name:    "Valid relative path",
			path:    "testdata/sample.csv",
			wantErr: false,
		},
		{
			name:    "Valid parent reference",
			path:    "../testdata/sample.csv",
			wantErr: false,
		},
		{
			name:     "Empty path",
			path:     "",
			wantErr:  true,
			expected: ErrInvalidPath,
		},
		{
			name:     "Whitespace only path",
			path:     "   ",
			wantErr:  true,
			expected: ErrInvalidPath,
		},
		{
			name:     "Path with null byte",
			path:     "test\x00.csv",
			wantErr:  true,
			expected: ErrInvalidPath,
		},
		{
			name:     "Path traversal attempt",
			path:     "../../../../../../../etc/passwd",
			wantErr:  true,
			expected: ErrInvalidPath,
		},
		{
			name:     "Unix system directory",
			path:     "/etc/passwd",
			wantErr:  true,
			expected: ErrInvalidPath,
		},
		{
			name:     "Windows system directory",
			path:     "C:\\Windows\\System32\\config",
			wantErr:  true,
			expected: ErrInvalidPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidatePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.expected != nil && !errors.Is(err, tt.expected) {
				t.Errorf("ValidatePath() error = %v, want %v", err, tt.expected)
			}
		})
	}
}

func TestValidateColumnCount(t *testing.T) {
	t.Parallel()

	if err := ValidateColumnCount(MaxColumnCount); err != nil {
		t.Errorf("ValidateColumnCount(%d) = %v, want nil", MaxColumnCount, err)
	}
	if err := ValidateColumnCount(MaxColumnCount + 1); !errors.Is(err, ErrTooManyColumns) {
		t.Errorf("ValidateColumnCount(%d) = %v, want %v", MaxColumnCount+1, err, ErrTooManyColumns)
	}
}

func TestValidateFileCount(t *testing.T) {
	t.Parallel()

	if err := ValidateFileCount(MaxFilesPerDirectory); err != nil {
		t.Errorf("ValidateFileCount(%d) = %v, want nil", MaxFilesPerDirectory, err)
	}
	if err := ValidateFileCount(MaxFilesPerDirectory + 1); !errors.Is(err, ErrTooManyFiles) {
		t.Errorf("ValidateFileCount(%d) = %v, want %v", MaxFilesPerDirectory+1, err, ErrTooManyFiles)
	}
}

func TestValidateFieldValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "Plain value", input: "hello", want: "hello"},
		{name: "Null bytes removed", input: "a\x00b", want: "ab"},
		{name: "Long value truncated", input: strings.Repeat("x", MaxValueLength+10), want: strings.Repeat("x", MaxValueLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ValidateFieldValue(tt.input); got != tt.want {
				t.Errorf("ValidateFieldValue() length = %d, want %d", len(got), len(tt.want))
			}
		})
	}
}

func TestIsValidFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fileName string
		want     bool
	}{
		{name: "Normal file", fileName: "users.csv", want: true},
		{name: "Hidden file", fileName: ".users.csv", want: false},
		{name: "Suspicious character", fileName: "users|.csv", want: false},
		{name: "Null byte", fileName: "users\x00.csv", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsValidFileName(tt.fileName); got != tt.want {
				t.Errorf("IsValidFileName(%q) = %v, want %v", tt.fileName, got, tt.want)
			}
		})
	}
}
