package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(VideoPrefix), GenerateID(VideoPrefix)
	if a == b {
		t.Fatalf("GenerateID() returned duplicate %q", a)
	}
	if !strings.HasPrefix(a, "vid-") || len(a) != len("vid-")+32 {
		t.Errorf("GenerateID() = %q", a)
	}
	if !ValidID(a, VideoPrefix) {
		t.Errorf("ValidID(%q) = false", a)
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"vid-0123456789abcdef0123456789abcdef", true},
		{"vid-0123456789ABCDEF0123456789ABCDEF", false},
		{"vid-0123", false},
		{"sel-0123456789abcdef0123456789abcdef", false},
		{"vid-../../../../etc/passwd0000000000000", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := ValidID(tt.id, VideoPrefix); got != tt.want {
				t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestSetJobError(t *testing.T) {
	var gotSession, gotJob, gotMsg string
	write := func(_ context.Context, sessionID, jobID, msg string) error {
		gotSession, gotJob, gotMsg = sessionID, jobID, msg
		return nil
	}
	if err := SetJobError(context.Background(), "s", "vid-1", "vendor rejected", write); err != nil {
		t.Fatalf("SetJobError() error = %v", err)
	}
	if gotSession != "s" || gotJob != "vid-1" || gotMsg != "vendor rejected" {
		t.Errorf("writer got (%q, %q, %q)", gotSession, gotJob, gotMsg)
	}

	boom := errors.New("store down")
	err := SetJobError(context.Background(), "s", "vid-1", "x", func(context.Context, string, string, string) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("SetJobError() error = %v, want writer error", err)
	}
}
