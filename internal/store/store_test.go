package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/fpang/swipe-story/internal/triage"
)

func sampleRecord(id string) *SessionRecord {
	return &SessionRecord{
		ID: id,
		Items: []triage.Item{
			{ID: 0, Ref: "s/0-a.jpg", Name: "a.jpg", MIMEType: "image/jpeg", Size: 10,
				TakenAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
			{ID: 1, Ref: "s/1-b.png", Name: "b.png", MIMEType: "image/png", Size: 20},
		},
		Version: 1,
	}
}

var ignoreStamps = cmpopts.IgnoreFields(SessionRecord{}, "CreatedAt", "UpdatedAt")

// storeContract exercises the behavior every Store must share.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("missing session is nil, nil", func(t *testing.T) {
		s := newStore(t)
		got, err := s.GetSession(ctx, "nope")
		if err != nil || got != nil {
			t.Fatalf("GetSession() = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("create then read", func(t *testing.T) {
		s := newStore(t)
		rec := sampleRecord("s1")
		if err := s.PutSession(ctx, rec); err != nil {
			t.Fatalf("PutSession() error = %v", err)
		}
		if rec.CreatedAt == 0 || rec.UpdatedAt == 0 {
			t.Error("PutSession() did not stamp timestamps")
		}

		got, err := s.GetSession(ctx, "s1")
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}
		if diff := cmp.Diff(rec, got, ignoreStamps, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("GetSession() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("versioned updates", func(t *testing.T) {
		s := newStore(t)
		rec := sampleRecord("s2")
		if err := s.PutSession(ctx, rec); err != nil {
			t.Fatal(err)
		}

		// A second create loses.
		if err := s.PutSession(ctx, sampleRecord("s2")); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("duplicate create error = %v, want ErrVersionConflict", err)
		}

		next := rec.Clone()
		next.Tags = []triage.Tag{triage.Keep}
		next.Version = 2
		if err := s.PutSession(ctx, next); err != nil {
			t.Fatalf("PutSession(v2) error = %v", err)
		}

		// A stale writer that also read v1 loses.
		stale := rec.Clone()
		stale.Tags = []triage.Tag{triage.Delete}
		stale.Version = 2
		if err := s.PutSession(ctx, stale); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("stale write error = %v, want ErrVersionConflict", err)
		}

		// Skipping a version loses too.
		skip := next.Clone()
		skip.Version = 4
		if err := s.PutSession(ctx, skip); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("skipped version error = %v, want ErrVersionConflict", err)
		}

		got, _ := s.GetSession(ctx, "s2")
		if got.Version != 2 || len(got.Tags) != 1 || got.Tags[0] != triage.Keep {
			t.Errorf("stored record = %+v, want v2 with [keep]", got)
		}
		if got.CreatedAt != rec.CreatedAt {
			t.Errorf("CreatedAt changed across updates: %d -> %d", rec.CreatedAt, got.CreatedAt)
		}
	})

	t.Run("update of missing session conflicts", func(t *testing.T) {
		s := newStore(t)
		rec := sampleRecord("ghost")
		rec.Version = 3
		if err := s.PutSession(ctx, rec); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("PutSession() error = %v, want ErrVersionConflict", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		if err := s.PutSession(ctx, sampleRecord("s3")); err != nil {
			t.Fatal(err)
		}
		if err := s.DeleteSession(ctx, "s3"); err != nil {
			t.Fatalf("DeleteSession() error = %v", err)
		}
		if got, _ := s.GetSession(ctx, "s3"); got != nil {
			t.Errorf("GetSession() after delete = %+v", got)
		}
		if err := s.DeleteSession(ctx, "s3"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second DeleteSession() error = %v, want ErrNotFound", err)
		}
		// A deleted ID can be created again from version 1.
		if err := s.PutSession(ctx, sampleRecord("s3")); err != nil {
			t.Errorf("re-create error = %v", err)
		}
	})

	t.Run("tasks", func(t *testing.T) {
		s := newStore(t)
		if got, err := s.GetTask(ctx, "vid-none"); err != nil || got != nil {
			t.Fatalf("GetTask(missing) = %v, %v", got, err)
		}

		task := &VideoTask{ID: "vid-1", SessionID: "s1", Service: "kling", Status: TaskPending}
		if err := s.PutTask(ctx, task); err != nil {
			t.Fatalf("PutTask() error = %v", err)
		}
		task.Status = TaskCompleted
		task.Progress = 100
		task.ProviderTaskID = "k-42"
		task.ResultURL = "https://cdn.example/v.mp4"
		if err := s.PutTask(ctx, task); err != nil {
			t.Fatalf("PutTask(update) error = %v", err)
		}

		got, err := s.GetTask(ctx, "vid-1")
		if err != nil {
			t.Fatalf("GetTask() error = %v", err)
		}
		if diff := cmp.Diff(task, got, cmpopts.IgnoreFields(VideoTask{}, "UpdatedAt")); diff != "" {
			t.Errorf("GetTask() mismatch (-want +got):\n%s", diff)
		}
		if !got.Terminal() {
			t.Error("completed task is not terminal")
		}
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"))
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore_ReopenMarksInterruptedTasks(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutTask(ctx, &VideoTask{ID: "vid-r", SessionID: "s", Service: "sora", Status: TaskProcessing}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutSession(ctx, sampleRecord("kept")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	task, _ := s.GetTask(ctx, "vid-r")
	if task == nil || task.Status != TaskFailed || task.Error == "" {
		t.Errorf("task after restart = %+v, want failed with error", task)
	}
	if rec, _ := s.GetSession(ctx, "kept"); rec == nil {
		t.Error("session lost across reopen")
	}
}

func TestMemoryStore_ConcurrentWritersOneWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.PutSession(ctx, sampleRecord("race")); err != nil {
		t.Fatal(err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := sampleRecord("race")
			rec.Version = 2
			if err := s.PutSession(ctx, rec); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := sampleRecord("copy")
	if err := s.PutSession(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Items[0].Name = "mutated"

	got, _ := s.GetSession(ctx, "copy")
	got.Tags = append(got.Tags, triage.Keep)

	again, _ := s.GetSession(ctx, "copy")
	if again.Items[0].Name != "a.jpg" || len(again.Tags) != 0 {
		t.Errorf("store shares memory with callers: %+v", again)
	}
}
