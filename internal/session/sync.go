package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/store"
	"github.com/fpang/swipe-story/internal/triage"
)

// errNoChange lets a mutation report success without a store write.
var errNoChange = errors.New("no change")

// load returns the entry for id, refreshed from the store. The entry's mutex
// is held on return. A cached engine is reused only while its version
// matches the stored one; otherwise it is rebuilt by replaying the stored
// tag log, which is how a second container picks up the first one's
// decisions.
func (m *Manager) load(ctx context.Context, id string) (*entry, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}

	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		e = &entry{}
		m.sessions[id] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	rec, err := m.store.GetSession(ctx, id)
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if rec == nil {
		e.mu.Unlock()
		m.forget(id, e)
		return nil, ErrNotFound
	}

	if e.engine == nil || e.version != rec.Version {
		engine, err := triage.Restore(rec.Items, rec.Tags)
		if err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("restore session %s: %w", id, err)
		}
		if e.engine != nil {
			log.Debug().Str("sessionId", id).Int64("cached", e.version).Int64("stored", rec.Version).Msg("Session refreshed from store")
		}
		e.engine = engine
		e.version = rec.Version
	}
	return e, nil
}

// forget drops e from the map if it is still the registered entry for id.
func (m *Manager) forget(id string, e *entry) {
	m.mu.Lock()
	if m.sessions[id] == e {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
}

// with runs fn under the session's lock.
func (m *Manager) with(ctx context.Context, id string, fn func(*entry) error) error {
	e, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	return fn(e)
}

// mutate applies fn to the engine, persists the result at version+1, and
// then calls view. Engine methods leave state unchanged when they fail, so
// view still sees a consistent engine. If the write fails the cached engine
// is discarded and rebuilt from the store on the next access.
func (m *Manager) mutate(ctx context.Context, id string, fn func(*entry) error, view func(*entry)) error {
	e, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := fn(e); err != nil {
		view(e)
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}

	if err := m.persist(ctx, id, e); err != nil {
		e.engine = nil
		return err
	}
	view(e)
	return nil
}

// persist writes e at version+1 and bumps e.version on success.
func (m *Manager) persist(ctx context.Context, id string, e *entry) error {
	rec := &store.SessionRecord{
		ID:      id,
		Items:   e.engine.Items(),
		Tags:    e.engine.Tags(),
		Version: e.version + 1,
	}
	if err := m.store.PutSession(ctx, rec); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			log.Warn().Str("sessionId", id).Int64("version", rec.Version).Msg("Session write lost a version race")
			return fmt.Errorf("save session %s: %w", id, store.ErrVersionConflict)
		}
		return fmt.Errorf("save session %s: %w", id, err)
	}
	e.version = rec.Version
	return nil
}

func snapshot(id string, eng *triage.Engine) Snapshot {
	snap := Snapshot{
		ID:       id,
		Cursor:   eng.Cursor(),
		Total:    eng.Len(),
		Stats:    eng.Stats(),
		Complete: eng.Complete(),
		Upcoming: eng.Upcoming(UpcomingCards),
	}
	if snap.Upcoming == nil {
		snap.Upcoming = []triage.Item{}
	}
	if cur, ok := eng.Current(); ok {
		snap.Current = &cur
	}
	if last, ok := eng.LastDecision(); ok {
		snap.LastDecision = &last
	}
	return snap
}
