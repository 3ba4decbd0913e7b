package filehandler

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsImage(t *testing.T) {
	tests := []struct {
		ext      string
		expected bool
	}{
		{".jpg", true},
		{".jpeg", true},
		{".JPG", true},
		{".JPEG", true},
		{".png", true},
		{".PNG", true},
		{".gif", true},
		{".webp", true},
		{".heic", true},
		{".HEIC", true},
		{".heif", true},
		{".mp4", false},
		{".mov", false},
		{".txt", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			result := IsImage(tt.ext)
			if result != tt.expected {
				t.Errorf("IsImage(%q) = %v, want %v", tt.ext, result, tt.expected)
			}
		})
	}
}

func TestIsVideo(t *testing.T) {
	tests := []struct {
		ext      string
		expected bool
	}{
		{".mp4", true},
		{".MP4", true},
		{".mov", true},
		{".MOV", true},
		{".avi", true},
		{".webm", true},
		{".mkv", true},
		{".m4v", true},
		{".jpg", false},
		{".png", false},
		{".txt", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			result := IsVideo(tt.ext)
			if result != tt.expected {
				t.Errorf("IsVideo(%q) = %v, want %v", tt.ext, result, tt.expected)
			}
		})
	}
}

func TestIsSupported(t *testing.T) {
	tests := []struct {
		ext      string
		expected bool
	}{
		{".jpg", true},
		{".mp4", true},
		{".heic", true},
		{".mov", true},
		{".txt", false},
		{".pdf", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			result := IsSupported(tt.ext)
			if result != tt.expected {
				t.Errorf("IsSupported(%q) = %v, want %v", tt.ext, result, tt.expected)
			}
		})
	}
}

func TestGetMIMEType(t *testing.T) {
	tests := []struct {
		ext          string
		expectedMIME string
		expectError  bool
	}{
		{".jpg", "image/jpeg", false},
		{".jpeg", "image/jpeg", false},
		{".png", "image/png", false},
		{".gif", "image/gif", false},
		{".webp", "image/webp", false},
		{".heic", "image/heic", false},
		{".heif", "image/heif", false},
		{".mp4", "video/mp4", false},
		{".mov", "video/quicktime", false},
		{".avi", "video/x-msvideo", false},
		{".webm", "video/webm", false},
		{".mkv", "video/x-matroska", false},
		{".txt", "", true},
		{".pdf", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			mime, err := GetMIMEType(tt.ext)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for %q, got nil", tt.ext)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error for %q: %v", tt.ext, err)
				}
				if mime != tt.expectedMIME {
					t.Errorf("GetMIMEType(%q) = %q, want %q", tt.ext, mime, tt.expectedMIME)
				}
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatSize(tt.n); got != tt.want {
				t.Errorf("FormatSize(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestLoadMediaFileFallsBackToModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	mf, err := LoadMediaFile(path)
	if err != nil {
		t.Fatalf("LoadMediaFile: %v", err)
	}
	if mf.MIMEType != "video/mp4" {
		t.Errorf("MIMEType = %q, want video/mp4", mf.MIMEType)
	}
	if !mf.IsVideoFile() {
		t.Error("IsVideoFile() = false, want true")
	}
	if mf.FromEXIF {
		t.Error("FromEXIF = true for a video")
	}
	if !mf.CapturedAt.Equal(mtime) {
		t.Errorf("CapturedAt = %v, want %v", mf.CapturedAt, mtime)
	}
}

func TestLoadMediaFileRejectsUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMediaFile(path); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if _, err := LoadMediaFile(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}
