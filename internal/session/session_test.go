package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fpang/swipe-story/internal/store"
	"github.com/fpang/swipe-story/internal/triage"
)

func items(names ...string) []triage.Item {
	out := make([]triage.Item, len(names))
	for i, n := range names {
		out[i] = triage.Item{ID: i, Ref: "ref/" + n, Name: n}
	}
	return out
}

func names(in []triage.Item) []string {
	out := make([]string, len(in))
	for i, it := range in {
		out[i] = it.Name
	}
	return out
}

func TestManager_DecideUndoFlow(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemoryStore())

	snap, err := m.Create(ctx, items("A", "B", "C"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !ValidID(snap.ID) {
		t.Fatalf("Create() ID = %q is not a UUID", snap.ID)
	}
	if snap.Current == nil || snap.Current.Name != "A" || len(snap.Upcoming) != 3 || snap.LastDecision != nil {
		t.Fatalf("initial snapshot = %+v", snap)
	}
	id := snap.ID

	if snap, err = m.Decide(ctx, id, triage.Keep); err != nil {
		t.Fatal(err)
	}
	if snap, err = m.Decide(ctx, id, triage.Delete); err != nil {
		t.Fatal(err)
	}
	if snap.Cursor != 2 || snap.LastDecision == nil || snap.LastDecision.Item.Name != "B" {
		t.Errorf("after two decisions = %+v", snap)
	}
	if diff := cmp.Diff([]string{"C"}, names(snap.Upcoming)); diff != "" {
		t.Errorf("Upcoming mismatch (-want +got):\n%s", diff)
	}

	snap, undone, err := m.Undo(ctx, id)
	if err != nil || !undone {
		t.Fatalf("Undo() = %v, %v", undone, err)
	}
	if snap.Cursor != 1 || snap.Current.Name != "B" {
		t.Errorf("after undo = %+v", snap)
	}
	want := triage.Stats{Kept: 1, Remaining: 2, Total: 3}
	if diff := cmp.Diff(want, snap.Stats); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}

	for _, tag := range []triage.Tag{triage.Keep, triage.Keep} {
		if snap, err = m.Decide(ctx, id, tag); err != nil {
			t.Fatal(err)
		}
	}
	if !snap.Complete || snap.Current != nil || len(snap.Upcoming) != 0 {
		t.Errorf("final snapshot = %+v", snap)
	}

	_, err = m.Decide(ctx, id, triage.Keep)
	if !triage.IsOutOfRange(err) {
		t.Errorf("Decide() after complete error = %v, want out of range", err)
	}

	kept, err := m.Kept(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, names(kept)); diff != "" {
		t.Errorf("Kept mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_UndoEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := NewManager(st)
	snap, err := m.Create(ctx, items("A"))
	if err != nil {
		t.Fatal(err)
	}

	after, undone, err := m.Undo(ctx, snap.ID)
	if err != nil || undone {
		t.Fatalf("Undo() = %v, %v; want false, nil", undone, err)
	}
	if diff := cmp.Diff(snap, after); diff != "" {
		t.Errorf("snapshot changed (-before +after):\n%s", diff)
	}

	rec, _ := st.GetSession(ctx, snap.ID)
	if rec.Version != 1 {
		t.Errorf("no-op undo wrote to the store (version %d)", rec.Version)
	}
}

func TestManager_PersistsEveryDecision(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := NewManager(st)
	snap, _ := m.Create(ctx, items("A", "B"))

	if _, err := m.Decide(ctx, snap.ID, triage.Delete); err != nil {
		t.Fatal(err)
	}
	rec, _ := st.GetSession(ctx, snap.ID)
	if rec.Version != 2 || len(rec.Tags) != 1 || rec.Tags[0] != triage.Delete {
		t.Errorf("stored record = %+v", rec)
	}

	// A fresh manager (another process) sees the same state.
	other := NewManager(st)
	got, err := other.Get(ctx, snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cursor != 1 || got.Stats.Deleted != 1 {
		t.Errorf("restored snapshot = %+v", got)
	}
}

func TestManager_TwoContainersStayConsistent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	a, b := NewManager(st), NewManager(st)

	snap, _ := a.Create(ctx, items("A", "B", "C"))
	id := snap.ID

	if _, err := b.Decide(ctx, id, triage.Keep); err != nil {
		t.Fatal(err)
	}
	// a's cached engine is at version 1; it must refresh before deciding.
	got, err := a.Decide(ctx, id, triage.Delete)
	if err != nil {
		t.Fatalf("a.Decide() error = %v", err)
	}
	if got.Cursor != 2 || got.Stats.Kept != 1 || got.Stats.Deleted != 1 {
		t.Errorf("a's snapshot = %+v", got)
	}
}

// racingStore bumps the stored version behind the manager's back right
// before the manager writes.
type racingStore struct {
	*store.MemoryStore
	once sync.Once
}

func (r *racingStore) PutSession(ctx context.Context, rec *store.SessionRecord) error {
	if rec.Version > 1 {
		r.once.Do(func() {
			cur, _ := r.MemoryStore.GetSession(ctx, rec.ID)
			cur.Version++
			_ = r.MemoryStore.PutSession(ctx, cur)
		})
	}
	return r.MemoryStore.PutSession(ctx, rec)
}

func TestManager_VersionConflict(t *testing.T) {
	ctx := context.Background()
	st := &racingStore{MemoryStore: store.NewMemoryStore()}
	m := NewManager(st)
	snap, _ := m.Create(ctx, items("A", "B"))

	if _, err := m.Decide(ctx, snap.ID, triage.Keep); !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("Decide() error = %v, want ErrVersionConflict", err)
	}

	// The losing write is not visible; a retry applies cleanly on top of the winner.
	got, err := m.Decide(ctx, snap.ID, triage.Keep)
	if err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if got.Cursor != 1 {
		t.Errorf("cursor after retry = %d, want 1", got.Cursor)
	}
}

func TestManager_Errors(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemoryStore())

	if _, err := m.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Get(bad id) error = %v, want ErrInvalidID", err)
	}
	if _, err := m.Get(ctx, NewID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, NewID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := m.Create(ctx, []triage.Item{{ID: 1}, {ID: 1}}); !errors.Is(err, triage.ErrDuplicateID) {
		t.Errorf("Create(dup) error = %v, want ErrDuplicateID", err)
	}

	snap, _ := m.Create(ctx, items("A"))
	if _, err := m.Decide(ctx, snap.ID, triage.Tag(9)); !errors.Is(err, triage.ErrInvalidTag) {
		t.Errorf("Decide(bad tag) error = %v", err)
	}
	if _, err := m.Item(ctx, snap.ID, 42); !errors.Is(err, ErrPhotoNotFound) {
		t.Errorf("Item(42) error = %v, want ErrPhotoNotFound", err)
	}
	if it, err := m.Item(ctx, snap.ID, 0); err != nil || it.Name != "A" {
		t.Errorf("Item(0) = %+v, %v", it, err)
	}
}

func TestManager_ResetAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemoryStore())
	snap, _ := m.Create(ctx, items("A", "B"))
	id := snap.ID
	if _, err := m.Decide(ctx, id, triage.Keep); err != nil {
		t.Fatal(err)
	}

	snap, err := m.Reset(ctx, id, items("X", "Y", "Z"))
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if snap.Cursor != 0 || snap.Total != 3 || snap.Stats.Kept != 0 || snap.LastDecision != nil {
		t.Errorf("after reset = %+v", snap)
	}
	decisions, _ := m.Decisions(ctx, id)
	if len(decisions) != 0 {
		t.Errorf("Decisions() after reset = %v", decisions)
	}

	if err := m.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestManager_ConcurrentDecisionsSerialize(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemoryStore())
	const n = 50
	in := make([]triage.Item, n)
	for i := range in {
		in[i] = triage.Item{ID: i}
	}
	snap, _ := m.Create(ctx, in)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tag := triage.Keep
			if i%2 == 1 {
				tag = triage.Delete
			}
			if _, err := m.Decide(ctx, snap.ID, tag); err != nil {
				t.Errorf("Decide() error = %v", err)
			}
		}()
	}
	wg.Wait()

	st, _ := m.Stats(ctx, snap.ID)
	if st.Kept+st.Deleted != n || st.Remaining != 0 {
		t.Errorf("Stats() = %+v, want all %d decided", st, n)
	}
}

func TestValidID(t *testing.T) {
	tests := map[string]bool{
		"a1b2c3d4-e5f6-4890-abcd-ef1234567890": true,
		"A1B2C3D4-E5F6-4890-ABCD-EF1234567890": false,
		"a1b2c3d4e5f64890abcdef1234567890":     false,
		"../../etc":                            false,
		"":                                     false,
	}
	for id, want := range tests {
		if got := ValidID(id); got != want {
			t.Errorf("ValidID(%q) = %v, want %v", id, got, want)
		}
	}
}
