package triage

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type engineState struct {
	Cursor  int
	Log     []Decision
	Kept    []Item
	Deleted []Item
	Stats   Stats
}

func stateOf(e *Engine) engineState {
	return engineState{
		Cursor:  e.Cursor(),
		Log:     e.Log(),
		Kept:    e.Kept(),
		Deleted: e.Deleted(),
		Stats:   e.Stats(),
	}
}

func makeItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{ID: i, Ref: fmt.Sprintf("photo-%d.jpg", i), Name: fmt.Sprintf("photo-%d.jpg", i)}
	}
	return items
}

func mustNew(t *testing.T, items []Item) *Engine {
	t.Helper()
	e, err := New(items)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func ids(items []Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

// tagSequences enumerates every Keep/Delete sequence of length n.
func tagSequences(n int) [][]Tag {
	var out [][]Tag
	for mask := 0; mask < 1<<n; mask++ {
		seq := make([]Tag, n)
		for i := range seq {
			if mask&(1<<i) != 0 {
				seq[i] = Delete
			} else {
				seq[i] = Keep
			}
		}
		out = append(out, seq)
	}
	return out
}

func TestDecide_AllItemsLeavesNothingRemaining(t *testing.T) {
	for n := 0; n <= 6; n++ {
		for _, seq := range tagSequences(n) {
			e := mustNew(t, makeItems(n))
			for i, tag := range seq {
				cursor, complete, err := e.Decide(tag)
				if err != nil {
					t.Fatalf("n=%d seq=%v: Decide #%d error = %v", n, seq, i, err)
				}
				if cursor != i+1 {
					t.Fatalf("n=%d: cursor = %d, want %d", n, cursor, i+1)
				}
				if complete != (i+1 == n) {
					t.Fatalf("n=%d: complete = %v after %d decisions", n, complete, i+1)
				}
			}
			s := e.Stats()
			if s.Remaining != 0 {
				t.Errorf("n=%d seq=%v: Remaining = %d, want 0", n, seq, s.Remaining)
			}
			if s.Kept+s.Deleted != n {
				t.Errorf("n=%d seq=%v: Kept+Deleted = %d, want %d", n, seq, s.Kept+s.Deleted, n)
			}
			if len(e.Log()) != e.Cursor() {
				t.Errorf("n=%d: len(log) = %d, cursor = %d", n, len(e.Log()), e.Cursor())
			}
		}
	}
}

func TestUndo_InvertsDecide(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for _, prefix := range tagSequences(n - 1) {
			for _, tag := range []Tag{Keep, Delete} {
				e, err := Restore(makeItems(n), prefix)
				if err != nil {
					t.Fatalf("Restore() error = %v", err)
				}
				before := stateOf(e)

				if _, _, err := e.Decide(tag); err != nil {
					t.Fatalf("Decide() error = %v", err)
				}
				d, ok := e.Undo()
				if !ok {
					t.Fatal("Undo() reported empty history after a decision")
				}
				if d.Tag != tag || d.Index != before.Cursor {
					t.Errorf("Undo() = %+v, want tag %v at index %d", d, tag, before.Cursor)
				}

				if diff := cmp.Diff(before, stateOf(e), cmpopts.EquateEmpty()); diff != "" {
					t.Errorf("n=%d prefix=%v tag=%v: state mismatch after undo (-before +after):\n%s", n, prefix, tag, diff)
				}
			}
		}
	}
}

func TestUndo_RewindsToInitialStateOneStepAtATime(t *testing.T) {
	e := mustNew(t, makeItems(4))
	initial := stateOf(e)

	var states []engineState
	for _, tag := range []Tag{Keep, Delete, Delete, Keep} {
		states = append(states, stateOf(e))
		if _, _, err := e.Decide(tag); err != nil {
			t.Fatalf("Decide() error = %v", err)
		}
	}

	for i := len(states) - 1; i >= 0; i-- {
		if _, ok := e.Undo(); !ok {
			t.Fatalf("Undo() step %d reported empty history", i)
		}
		if diff := cmp.Diff(states[i], stateOf(e), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("step %d (-want +got):\n%s", i, diff)
		}
	}

	if diff := cmp.Diff(initial, stateOf(e), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("not back at initial state (-want +got):\n%s", diff)
	}
}

func TestUndo_EmptyHistoryIsNoOp(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
	}{
		{"empty working set", nil},
		{"fresh working set", makeItems(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := mustNew(t, tt.items)
			before := stateOf(e)

			for range 3 {
				d, ok := e.Undo()
				if ok {
					t.Fatalf("Undo() = (%+v, true), want no-op", d)
				}
			}

			if diff := cmp.Diff(before, stateOf(e), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("state changed (-before +after):\n%s", diff)
			}
		})
	}
}

func TestUndo_RemovesByIdentity(t *testing.T) {
	e := mustNew(t, makeItems(3))
	for range 3 {
		if _, _, err := e.Decide(Keep); err != nil {
			t.Fatalf("Decide() error = %v", err)
		}
	}

	e.Undo()

	if got, want := ids(e.Kept()), []int{0, 1}; !cmp.Equal(got, want) {
		t.Errorf("Kept() = %v, want %v", got, want)
	}
	if tag, ok := e.TagOf(0); !ok || tag != Keep {
		t.Errorf("TagOf(0) = %v, %v; want keep", tag, ok)
	}
	if _, ok := e.TagOf(2); ok {
		t.Error("TagOf(2) still reports membership after undo")
	}
}

func TestPartition_RemoveMiddleReindexes(t *testing.T) {
	p := newPartition()
	for _, it := range makeItems(4) {
		p.add(it)
	}

	if !p.remove(1) {
		t.Fatal("remove(1) = false")
	}
	if p.remove(1) {
		t.Fatal("second remove(1) = true")
	}
	if got, want := ids(p.items), []int{0, 2, 3}; !cmp.Equal(got, want) {
		t.Fatalf("items = %v, want %v", got, want)
	}
	for i, it := range p.items {
		if p.index[it.ID] != i {
			t.Errorf("index[%d] = %d, want %d", it.ID, p.index[it.ID], i)
		}
	}
	if !p.remove(3) || !p.remove(0) || !p.remove(2) {
		t.Fatal("remove after reindex failed")
	}
	if len(p.items) != 0 || len(p.index) != 0 {
		t.Errorf("partition not empty: items=%v index=%v", p.items, p.index)
	}
}

func TestScenario_DecideUndoDecide(t *testing.T) {
	items := []Item{{ID: 10, Name: "A"}, {ID: 20, Name: "B"}, {ID: 30, Name: "C"}}
	e := mustNew(t, items)

	type step struct {
		name         string
		do           func() (int, bool)
		wantCursor   int
		wantKept     []int
		wantDeleted  []int
		wantComplete bool
	}

	decide := func(tag Tag) func() (int, bool) {
		return func() (int, bool) {
			c, done, err := e.Decide(tag)
			if err != nil {
				t.Fatalf("Decide(%v) error = %v", tag, err)
			}
			return c, done
		}
	}
	undo := func() (int, bool) {
		e.Undo()
		return e.Cursor(), e.Complete()
	}

	steps := []step{
		{"keep A", decide(Keep), 1, []int{10}, nil, false},
		{"delete B", decide(Delete), 2, []int{10}, []int{20}, false},
		{"undo", undo, 1, []int{10}, nil, false},
		{"keep B", decide(Keep), 2, []int{10, 20}, nil, false},
		{"keep C", decide(Keep), 3, []int{10, 20, 30}, nil, true},
	}

	for _, s := range steps {
		cursor, complete := s.do()
		if cursor != s.wantCursor {
			t.Errorf("%s: cursor = %d, want %d", s.name, cursor, s.wantCursor)
		}
		if complete != s.wantComplete {
			t.Errorf("%s: complete = %v, want %v", s.name, complete, s.wantComplete)
		}
		if diff := cmp.Diff(s.wantKept, ids(e.Kept()), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("%s: kept mismatch (-want +got):\n%s", s.name, diff)
		}
		if diff := cmp.Diff(s.wantDeleted, ids(e.Deleted()), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("%s: deleted mismatch (-want +got):\n%s", s.name, diff)
		}
	}

	if got := e.Stats().Remaining; got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
}

func TestDecide_EmptyWorkingSet(t *testing.T) {
	e := mustNew(t, nil)
	if !e.Complete() {
		t.Fatal("empty working set should be complete immediately")
	}

	_, complete, err := e.Decide(Keep)
	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("Decide() error = %v, want *OutOfRangeError", err)
	}
	if !complete {
		t.Error("Decide() complete = false on empty set")
	}
	if oor.Cursor != 0 || oor.Len != 0 {
		t.Errorf("OutOfRangeError = %+v", oor)
	}
}

func TestDecide_AfterCompleteFailsWithoutAppending(t *testing.T) {
	e := mustNew(t, makeItems(2))
	e.Decide(Keep)
	e.Decide(Delete)
	before := stateOf(e)

	if _, _, err := e.Decide(Keep); !IsOutOfRange(err) {
		t.Fatalf("Decide() error = %v, want out of range", err)
	}
	if diff := cmp.Diff(before, stateOf(e)); diff != "" {
		t.Errorf("state changed by failed decide (-before +after):\n%s", diff)
	}
}

func TestDecide_InvalidTag(t *testing.T) {
	e := mustNew(t, makeItems(1))
	if _, _, err := e.Decide(Tag(0)); !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("Decide(0) error = %v, want ErrInvalidTag", err)
	}
	if e.Cursor() != 0 {
		t.Errorf("cursor = %d after invalid decide", e.Cursor())
	}
}

func TestReset_MidTriage(t *testing.T) {
	e := mustNew(t, makeItems(5))
	e.Decide(Keep)
	e.Decide(Delete)

	if err := e.Reset(makeItems(7)); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	want := Stats{Kept: 0, Deleted: 0, Remaining: 7, Total: 7}
	if diff := cmp.Diff(want, e.Stats()); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
	if e.Cursor() != 0 || len(e.Log()) != 0 {
		t.Errorf("cursor = %d, log = %d; want cleared", e.Cursor(), len(e.Log()))
	}
	if _, ok := e.Undo(); ok {
		t.Error("Undo() after reset should be a no-op")
	}
}

func TestReset_DuplicateIDsRejected(t *testing.T) {
	e := mustNew(t, makeItems(2))
	e.Decide(Keep)

	err := e.Reset([]Item{{ID: 1}, {ID: 1}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("Reset() error = %v, want ErrDuplicateID", err)
	}
	if e.Cursor() != 1 || e.Len() != 2 {
		t.Errorf("engine modified by failed reset: cursor=%d len=%d", e.Cursor(), e.Len())
	}
}

func TestNew_CopiesInput(t *testing.T) {
	items := makeItems(2)
	e := mustNew(t, items)
	items[0].Name = "mutated"

	if cur, _ := e.Current(); cur.Name == "mutated" {
		t.Error("engine shares backing array with caller")
	}
}

func TestUpcoming(t *testing.T) {
	e := mustNew(t, makeItems(4))

	tests := []struct {
		decide int
		n      int
		want   []int
	}{
		{0, 3, []int{0, 1, 2}},
		{2, 3, []int{2, 3}},
		{4, 3, nil},
		{0, 0, nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("after_%d_n_%d", tt.decide, tt.n), func(t *testing.T) {
			e.Reset(makeItems(4))
			for range tt.decide {
				e.Decide(Keep)
			}
			if diff := cmp.Diff(tt.want, ids(e.Upcoming(tt.n)), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Upcoming() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRestore(t *testing.T) {
	e, err := Restore(makeItems(3), []Tag{Delete, Keep})
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if diff := cmp.Diff([]Tag{Delete, Keep}, e.Tags()); diff != "" {
		t.Errorf("Tags() mismatch (-want +got):\n%s", diff)
	}
	if got := ids(e.Deleted()); !cmp.Equal(got, []int{0}) {
		t.Errorf("Deleted() = %v, want [0]", got)
	}

	if _, err := Restore(makeItems(1), []Tag{Keep, Keep}); !IsOutOfRange(err) {
		t.Errorf("Restore() with overlong log error = %v, want out of range", err)
	}
	if _, err := Restore(makeItems(1), []Tag{Tag(9)}); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("Restore() with bad tag error = %v, want ErrInvalidTag", err)
	}
}

// TestRandomWalk checks the engine against a model that recomputes the
// partitions from the log after every step.
func TestRandomWalk(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for trial := range 50 {
		n := rng.IntN(12)
		e := mustNew(t, makeItems(n))

		for step := range 60 {
			switch rng.IntN(3) {
			case 0:
				e.Undo()
			case 1:
				e.Decide(Keep)
			default:
				e.Decide(Delete)
			}

			var wantKept, wantDeleted []int
			for _, d := range e.Log() {
				if d.Tag == Keep {
					wantKept = append(wantKept, d.Item.ID)
				} else {
					wantDeleted = append(wantDeleted, d.Item.ID)
				}
				if d.Item.ID != d.Index {
					t.Fatalf("trial %d step %d: decision %+v recorded out of order", trial, step, d)
				}
			}

			if len(e.Log()) != e.Cursor() {
				t.Fatalf("trial %d step %d: len(log)=%d cursor=%d", trial, step, len(e.Log()), e.Cursor())
			}
			if !cmp.Equal(wantKept, ids(e.Kept()), cmpopts.EquateEmpty()) ||
				!cmp.Equal(wantDeleted, ids(e.Deleted()), cmpopts.EquateEmpty()) {
				t.Fatalf("trial %d step %d: partitions diverged from log", trial, step)
			}
			if s := e.Stats(); s.Kept+s.Deleted+s.Remaining != n {
				t.Fatalf("trial %d step %d: stats %+v do not sum to %d", trial, step, s, n)
			}
		}
	}
}
