// Package triage implements the swipe keep/delete state machine.
//
// An Engine walks an ordered working set of photos one item at a time. Each
// decision tags the current item Keep or Delete and advances the cursor; Undo
// pops the most recent decision and rewinds the cursor to where it was. The
// decision log is the source of truth: len(log) always equals the cursor, and
// the kept and deleted partitions only ever change in lockstep with it.
//
// The engine performs no I/O and is not safe for concurrent use. Callers that
// share an engine across goroutines (the HTTP server, for example) must guard
// it themselves; see package session.
package triage

import (
	"fmt"
	"strings"
	"time"
)

// Tag is the outcome recorded for a single item.
type Tag int

const (
	// Keep marks the item for the story.
	Keep Tag = iota + 1
	// Delete marks the item for removal.
	Delete
)

// String returns the lowercase wire name of the tag.
func (t Tag) String() string {
	switch t {
	case Keep:
		return "keep"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("Tag(%d)", int(t))
	}
}

// Valid reports whether t is Keep or Delete.
func (t Tag) Valid() bool {
	return t == Keep || t == Delete
}

// MarshalText implements encoding.TextMarshaler so tags serialize as "keep"/"delete".
func (t Tag) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, ErrInvalidTag
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tag) UnmarshalText(b []byte) error {
	parsed, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTag converts a wire or gesture name into a Tag. Swipe directions are
// accepted as aliases: right keeps, left deletes.
func ParseTag(s string) (Tag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keep", "right":
		return Keep, nil
	case "delete", "left":
		return Delete, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTag, s)
	}
}

// Item is one ingested photo. ID is unique within a working set and never
// changes; Ref is an opaque handle to the bytes (a local path or a blob key).
type Item struct {
	ID       int       `json:"id"`
	Ref      string    `json:"ref"`
	Name     string    `json:"name"`
	MIMEType string    `json:"mimeType,omitempty"`
	Size     int64     `json:"size,omitempty"`
	TakenAt  time.Time `json:"takenAt,omitzero"`
}

// Decision records one keep/delete choice. Index is the cursor position at
// the time the decision was made.
type Decision struct {
	Item  Item `json:"item"`
	Tag   Tag  `json:"tag"`
	Index int  `json:"index"`
}

// Stats are the aggregate counts derived from the decision log.
type Stats struct {
	Kept      int `json:"keptCount"`
	Deleted   int `json:"deletedCount"`
	Remaining int `json:"remainingCount"`
	Total     int `json:"total"`
}
