// Package session owns triage engines on behalf of the presentation
// adapters. Each session has exactly one engine, guarded by its own mutex,
// and every mutation is written through to a store.Store with an optimistic
// version check before it is acknowledged.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/metrics"
	"github.com/fpang/swipe-story/internal/store"
	"github.com/fpang/swipe-story/internal/triage"
)

// UpcomingCards is how many items a Snapshot previews, the current card
// included.
const UpcomingCards = 3

var (
	// ErrNotFound is returned for an unknown session ID.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned for IDs that are not canonical UUIDs.
	ErrInvalidID = errors.New("invalid session ID")
	// ErrPhotoNotFound is returned by Item for an ID outside the working set.
	ErrPhotoNotFound = errors.New("photo not found")
)

// Snapshot is a point-in-time view of a session for rendering.
type Snapshot struct {
	ID           string           `json:"sessionId"`
	Cursor       int              `json:"cursor"`
	Total        int              `json:"total"`
	Stats        triage.Stats     `json:"stats"`
	Complete     bool             `json:"complete"`
	Current      *triage.Item     `json:"current,omitempty"`
	Upcoming     []triage.Item    `json:"upcoming"`
	LastDecision *triage.Decision `json:"lastDecision,omitempty"`
}

// NewID returns a fresh session ID.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id is a canonical lowercase UUID.
func ValidID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

type entry struct {
	mu      sync.Mutex
	engine  *triage.Engine
	version int64
}

// Manager maps session IDs to engines.
type Manager struct {
	store store.Store

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager returns a Manager persisting to s.
func NewManager(s store.Store) *Manager {
	return &Manager{
		store:    s,
		sessions: make(map[string]*entry),
	}
}

// Create starts a session with a fresh ID.
func (m *Manager) Create(ctx context.Context, items []triage.Item) (Snapshot, error) {
	return m.CreateWithID(ctx, NewID(), items)
}

// CreateWithID starts a session under an ID the caller already used, for
// example as the blob prefix of its uploads.
func (m *Manager) CreateWithID(ctx context.Context, id string, items []triage.Item) (Snapshot, error) {
	if !ValidID(id) {
		return Snapshot{}, ErrInvalidID
	}
	engine, err := triage.New(items)
	if err != nil {
		return Snapshot{}, err
	}

	e := &entry{engine: engine}
	if err := m.persist(ctx, id, e); err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	m.sessions[id] = e
	m.mu.Unlock()

	log.Info().Str("sessionId", id).Int("items", engine.Len()).Msg("Session created")
	return snapshot(id, engine), nil
}

// Get returns the current snapshot.
func (m *Manager) Get(ctx context.Context, id string) (Snapshot, error) {
	var snap Snapshot
	err := m.with(ctx, id, func(e *entry) error {
		snap = snapshot(id, e.engine)
		return nil
	})
	return snap, err
}

// Delete removes the session from memory and the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if err := m.store.DeleteSession(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	log.Info().Str("sessionId", id).Msg("Session deleted")
	return nil
}

// Decide tags the current item. When the session is already complete the
// error is a *triage.OutOfRangeError and nothing changes.
func (m *Manager) Decide(ctx context.Context, id string, tag triage.Tag) (Snapshot, error) {
	var (
		snap Snapshot
		done bool
	)
	err := m.mutate(ctx, id, func(e *entry) error {
		var err error
		_, done, err = e.engine.Decide(tag)
		return err
	}, func(e *entry) { snap = snapshot(id, e.engine) })
	if err != nil {
		return snap, err
	}

	metrics.Decision(tag.String())
	if done {
		metrics.TriageComplete(snap.Stats.Kept, snap.Stats.Deleted)
		log.Info().Str("sessionId", id).Int("kept", snap.Stats.Kept).Int("deleted", snap.Stats.Deleted).Msg("Triage complete")
	}
	return snap, nil
}

// Undo reverts the latest decision. With nothing to undo it reports false and
// leaves the session untouched.
func (m *Manager) Undo(ctx context.Context, id string) (Snapshot, bool, error) {
	var (
		snap     Snapshot
		reverted bool
	)
	err := m.mutate(ctx, id, func(e *entry) error {
		if _, reverted = e.engine.Undo(); !reverted {
			return errNoChange
		}
		return nil
	}, func(e *entry) { snap = snapshot(id, e.engine) })
	if err != nil {
		return snap, false, err
	}
	metrics.Undo(reverted)
	return snap, reverted, nil
}

// Reset replaces the working set and clears all decisions.
func (m *Manager) Reset(ctx context.Context, id string, items []triage.Item) (Snapshot, error) {
	var snap Snapshot
	err := m.mutate(ctx, id, func(e *entry) error {
		return e.engine.Reset(items)
	}, func(e *entry) { snap = snapshot(id, e.engine) })
	return snap, err
}

// Stats returns the session's counts.
func (m *Manager) Stats(ctx context.Context, id string) (triage.Stats, error) {
	var st triage.Stats
	err := m.with(ctx, id, func(e *entry) error {
		st = e.engine.Stats()
		return nil
	})
	return st, err
}

// Kept returns the kept items in processing order.
func (m *Manager) Kept(ctx context.Context, id string) ([]triage.Item, error) {
	var kept []triage.Item
	err := m.with(ctx, id, func(e *entry) error {
		kept = e.engine.Kept()
		return nil
	})
	return kept, err
}

// Decisions returns the decision log.
func (m *Manager) Decisions(ctx context.Context, id string) ([]triage.Decision, error) {
	var decisions []triage.Decision
	err := m.with(ctx, id, func(e *entry) error {
		decisions = e.engine.Log()
		return nil
	})
	return decisions, err
}

// Items returns the full working set.
func (m *Manager) Items(ctx context.Context, id string) ([]triage.Item, error) {
	var items []triage.Item
	err := m.with(ctx, id, func(e *entry) error {
		items = e.engine.Items()
		return nil
	})
	return items, err
}

// Item returns one photo of the working set by its ID.
func (m *Manager) Item(ctx context.Context, id string, photoID int) (triage.Item, error) {
	var item triage.Item
	err := m.with(ctx, id, func(e *entry) error {
		for _, it := range e.engine.Items() {
			if it.ID == photoID {
				item = it
				return nil
			}
		}
		return ErrPhotoNotFound
	})
	return item, err
}
