package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{5 * time.Second, "0:05"},
		{90 * time.Second, "1:30"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDurationShort(tt.d); got != tt.want {
			t.Errorf("FormatDurationShort(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestResolveDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveDirectory(dir)
	if err != nil || !filepath.IsAbs(got) {
		t.Errorf("ResolveDirectory(dir) = %q, %v", got, err)
	}
	if _, err := ResolveDirectory(file); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("ResolveDirectory(file) error = %v", err)
	}
	if _, err := ResolveDirectory(filepath.Join(dir, "missing")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("ResolveDirectory(missing) error = %v", err)
	}
}

func TestPromptForDirectory(t *testing.T) {
	cwd, _ := os.Getwd()
	var out strings.Builder

	if got := promptForDirectory(strings.NewReader("/photos/italy\n"), &out); got != "/photos/italy" {
		t.Errorf("prompt = %q", got)
	}
	if got := promptForDirectory(strings.NewReader("\n"), &out); got != cwd {
		t.Errorf("empty input = %q, want %q", got, cwd)
	}
	if got := promptForDirectory(strings.NewReader(""), &out); got != cwd {
		t.Errorf("EOF = %q, want %q", got, cwd)
	}
	if got := promptForDirectory(strings.NewReader("  ~/trip"), &out); got != "~/trip" {
		t.Errorf("no newline = %q", got)
	}
	if !strings.Contains(out.String(), "Photo directory [") {
		t.Errorf("prompt text = %q", out.String())
	}
}
