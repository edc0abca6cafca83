package triage

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		in      string
		want    Tag
		wantErr bool
	}{
		{"keep", Keep, false},
		{"KEEP", Keep, false},
		{" right ", Keep, false},
		{"delete", Delete, false},
		{"left", Delete, false},
		{"", 0, true},
		{"maybe", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTag(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTag(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTag) {
				t.Errorf("ParseTag(%q) error = %v, want ErrInvalidTag", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTag(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTag_JSON(t *testing.T) {
	data, err := json.Marshal(Decision{Item: Item{ID: 3, Name: "x.jpg"}, Tag: Delete, Index: 3})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if raw["tag"] != "delete" {
		t.Errorf("tag = %v, want \"delete\"", raw["tag"])
	}
	item := raw["item"].(map[string]any)
	if _, ok := item["takenAt"]; ok {
		t.Error("zero takenAt should be omitted")
	}

	var d Decision
	if err := json.Unmarshal([]byte(`{"tag":"bogus"}`), &d); err == nil {
		t.Error("Unmarshal() accepted an invalid tag")
	}
}

func TestTag_String(t *testing.T) {
	if Keep.String() != "keep" || Delete.String() != "delete" {
		t.Errorf("String() = %q, %q", Keep.String(), Delete.String())
	}
	if Tag(7).Valid() {
		t.Error("Tag(7).Valid() = true")
	}
	if _, err := Tag(0).MarshalText(); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("MarshalText() error = %v, want ErrInvalidTag", err)
	}
}
