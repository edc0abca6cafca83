// Package store persists triage sessions and video generation tasks.
//
// A session record carries the working set and the tag log, which is all
// triage.Restore needs to rebuild an engine. Writes are optimistic: every
// PutSession carries the next version number and succeeds only if the stored
// version is exactly one less (or absent, for version 1). Two containers
// racing on the same session therefore cannot silently overwrite each
// other's decisions.
//
// Get methods return (nil, nil) when the record does not exist.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fpang/swipe-story/internal/triage"
)

// SessionTTL is how long records live in stores that expire them (DynamoDB).
const SessionTTL = 24 * time.Hour

var (
	// ErrVersionConflict is returned by PutSession when the stored version is
	// not the record's version minus one.
	ErrVersionConflict = errors.New("session version conflict")

	// ErrNotFound is returned by DeleteSession for a session that does not exist.
	ErrNotFound = errors.New("not found")
)

// Store holds session and video task records. Implementations are safe for
// concurrent use.
type Store interface {
	// PutSession writes rec if the stored version is rec.Version-1. A record
	// with Version 1 is created only if no session with that ID exists.
	PutSession(ctx context.Context, rec *SessionRecord) error

	// GetSession returns the session, or nil, nil if it does not exist.
	GetSession(ctx context.Context, id string) (*SessionRecord, error)

	// DeleteSession removes the session record.
	DeleteSession(ctx context.Context, id string) error

	// PutTask creates or replaces a video task.
	PutTask(ctx context.Context, task *VideoTask) error

	// GetTask returns the task, or nil, nil if it does not exist.
	GetTask(ctx context.Context, id string) (*VideoTask, error)
}

// SessionRecord is the persisted form of one triage session.
type SessionRecord struct {
	ID        string        `json:"id" dynamodbav:"-"`
	Items     []triage.Item `json:"items" dynamodbav:"items"`
	Tags      []triage.Tag  `json:"tags" dynamodbav:"tags"`
	Version   int64         `json:"version" dynamodbav:"version"`
	CreatedAt int64         `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt int64         `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Clone returns a deep copy of the record.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Items = append([]triage.Item(nil), r.Items...)
	c.Tags = append([]triage.Tag(nil), r.Tags...)
	return &c
}

// Video task states.
const (
	TaskPending    = "pending"
	TaskProcessing = "processing"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
	TaskCancelled  = "cancelled"
)

// VideoTask tracks one story video generation request.
type VideoTask struct {
	ID             string `json:"id" dynamodbav:"-"`
	SessionID      string `json:"sessionId" dynamodbav:"sessionId"`
	Service        string `json:"service" dynamodbav:"service"`
	ProviderTaskID string `json:"providerTaskId,omitempty" dynamodbav:"providerTaskId,omitempty"`
	Status         string `json:"status" dynamodbav:"status"`
	Progress       int    `json:"progress" dynamodbav:"progress"`
	ResultURL      string `json:"resultUrl,omitempty" dynamodbav:"resultUrl,omitempty"`
	Error          string `json:"error,omitempty" dynamodbav:"error,omitempty"`
	CreatedAt      int64  `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Terminal reports whether the task has reached a final state.
func (t *VideoTask) Terminal() bool {
	switch t.Status {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

func stamp(createdAt *int64, updatedAt *int64) {
	now := time.Now().Unix()
	if *createdAt == 0 {
		*createdAt = now
	}
	*updatedAt = now
}
