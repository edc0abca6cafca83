package filehandler

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatMetadataContext(t *testing.T) {
	meta := &ImageMetadata{
		Latitude:    40.7128,
		Longitude:   -74.0060,
		HasGPS:      true,
		DateTaken:   time.Date(2024, 12, 31, 10, 30, 0, 0, time.UTC),
		HasDate:     true,
		CameraMake:  "Apple",
		CameraModel: "iPhone 15 Pro",
	}

	got := meta.FormatMetadataContext()
	for _, want := range []string{
		"Taken: Tuesday, December 31, 2024 at 10:30 AM",
		"Location: 40.712800, -74.006000",
		"Camera: Apple iPhone 15 Pro",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatMetadataContext() missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatMetadataContext_Empty(t *testing.T) {
	got := (&ImageMetadata{}).FormatMetadataContext()
	if !strings.Contains(got, "Taken: unknown") || !strings.Contains(got, "Location: not available") {
		t.Errorf("FormatMetadataContext() = %q", got)
	}
	if strings.Contains(got, "Camera") {
		t.Errorf("FormatMetadataContext() should omit camera: %q", got)
	}
}

func TestImageMetadata_Camera(t *testing.T) {
	tests := []struct {
		name string
		meta *ImageMetadata
		want string
	}{
		{"nil", nil, ""},
		{"make and model", &ImageMetadata{CameraMake: "Apple", CameraModel: "iPhone 15"}, "Apple iPhone 15"},
		{"model repeats make", &ImageMetadata{CameraMake: "Canon", CameraModel: "Canon EOS R5"}, "Canon EOS R5"},
		{"model only", &ImageMetadata{CameraModel: "X100V"}, "X100V"},
		{"empty", &ImageMetadata{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.meta.Camera(); got != tt.want {
				t.Errorf("Camera() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeImageMetadata_NotAnImage(t *testing.T) {
	if _, err := DecodeImageMetadata(bytes.NewReader([]byte("definitely not a photo"))); err == nil {
		t.Error("DecodeImageMetadata() error = nil for garbage input")
	}
}
