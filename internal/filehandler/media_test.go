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
		{".png", true},
		{".PNG", true},
		{".gif", true},
		{".webp", true},
		{".heic", true},
		{".HEIF", true},
		{".mp4", false},
		{".mov", false},
		{".txt", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := IsImage(tt.ext); got != tt.expected {
				t.Errorf("IsImage(%q) = %v, want %v", tt.ext, got, tt.expected)
			}
		})
	}
}

func TestIsImageContentType(t *testing.T) {
	tests := []struct {
		ct       string
		expected bool
	}{
		{"image/jpeg", true},
		{"IMAGE/PNG", true},
		{"image/webp; charset=binary", true},
		{"image/heic", true},
		{"video/mp4", false},
		{"application/octet-stream", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ct, func(t *testing.T) {
			if got := IsImageContentType(tt.ct); got != tt.expected {
				t.Errorf("IsImageContentType(%q) = %v, want %v", tt.ct, got, tt.expected)
			}
		})
	}
}

func TestExtForContentType(t *testing.T) {
	if ext, ok := ExtForContentType("image/jpeg"); !ok || ext != ".jpg" {
		t.Errorf("ExtForContentType(image/jpeg) = %q, %v", ext, ok)
	}
	if _, ok := ExtForContentType("text/plain"); ok {
		t.Error("ExtForContentType(text/plain) ok = true")
	}
}

func TestGetMIMEType(t *testing.T) {
	tests := []struct {
		ext     string
		want    string
		wantErr bool
	}{
		{".jpg", "image/jpeg", false},
		{".JPEG", "image/jpeg", false},
		{".png", "image/png", false},
		{".heic", "image/heic", false},
		{".mp4", "", true},
		{".xyz", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			got, err := GetMIMEType(tt.ext)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetMIMEType(%q) error = %v, wantErr %v", tt.ext, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GetMIMEType(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestLoadMediaFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beach.png")
	writePNG(t, path, 8, 4)

	mf, err := LoadMediaFile(path)
	if err != nil {
		t.Fatalf("LoadMediaFile() error = %v", err)
	}
	if mf.Name() != "beach.png" || mf.MIMEType != "image/png" {
		t.Errorf("got name %q mime %q", mf.Name(), mf.MIMEType)
	}
	if mf.Size == 0 {
		t.Error("Size = 0")
	}
	// A PNG without EXIF falls back to the modification time.
	if !mf.TakenAt().Equal(mf.ModTime) {
		t.Errorf("TakenAt() = %v, want ModTime %v", mf.TakenAt(), mf.ModTime)
	}

	if _, err := LoadMediaFile(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("LoadMediaFile(missing) error = nil")
	}
	if _, err := LoadMediaFile(dir); err == nil {
		t.Error("LoadMediaFile(dir) error = nil")
	}

	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("hi"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMediaFile(txt); err == nil {
		t.Error("LoadMediaFile(txt) error = nil")
	}
}

func TestMediaFile_TakenAtPrefersEXIF(t *testing.T) {
	taken := time.Date(2024, 7, 4, 18, 0, 0, 0, time.UTC)
	mf := &MediaFile{
		ModTime:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Metadata: &ImageMetadata{DateTaken: taken, HasDate: true},
	}
	if !mf.TakenAt().Equal(taken) {
		t.Errorf("TakenAt() = %v, want %v", mf.TakenAt(), taken)
	}
}

func TestCoordinatesToDMS(t *testing.T) {
	got := CoordinatesToDMS(40.7128, -74.0060)
	want := "40°42'46.08\"N, 74°0'21.60\"W"
	if got != want {
		t.Errorf("CoordinatesToDMS() = %q, want %q", got, want)
	}
}
