package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "resume.txt")
	if err := os.WriteFile(small, []byte("Go engineer"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		filename string
		maxSize  int64
		wantErr  string
	}{
		{"readable file", small, 1024, ""},
		{"size check disabled", small, 0, ""},
		{"empty name", "", 0, "cannot be empty"},
		{"missing", filepath.Join(dir, "nope.pdf"), 0, "does not exist"},
		{"directory", dir, 0, "is a directory"},
		{"too large", small, 4, "larger than the 4 B limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInputFile(tt.filename, tt.maxSize)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateOutputFileCreatesDirectory(t *testing.T) {
	target := filepath.Join(t.TempDir(), "reports", "ats_report.json")

	if err := ValidateOutputFile(target); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if info, err := os.Stat(filepath.Dir(target)); err != nil || !info.IsDir() {
		t.Errorf("Expected directory to be created, got %v", err)
	}
	if err := ValidateOutputFile(""); err != nil {
		t.Errorf("Expected stdout to be valid, got %v", err)
	}
}

func TestFileKinds(t *testing.T) {
	tests := []struct {
		filename string
		text     bool
		resume   bool
	}{
		{"cv.TXT", true, true},
		{"cv.md", true, true},
		{"cv.pdf", false, true},
		{"cv.DOCX", false, true},
		{"cv.doc", false, false},
		{"cv", false, false},
	}

	for _, tt := range tests {
		if got := IsTextFile(tt.filename); got != tt.text {
			t.Errorf("IsTextFile(%q) = %v, expected %v", tt.filename, got, tt.text)
		}
		if got := IsResumeFile(tt.filename); got != tt.resume {
			t.Errorf("IsResumeFile(%q) = %v, expected %v", tt.filename, got, tt.resume)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{10 * 1024 * 1024, "10.0 MB"},
	}

	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.expected {
			t.Errorf("FormatFileSize(%d) = %q, expected %q", tt.size, got, tt.expected)
		}
	}
}
