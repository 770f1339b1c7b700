package history

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/xalatechnologies/aplus/compositor"
	"github.com/xalatechnologies/aplus/exporter"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(t *testing.T, s *Store, owner, doc string, at time.Time) {
	t.Helper()
	err := s.Record(context.Background(), exporter.Record{
		DocumentID: doc,
		OwnerID:    owner,
		Path:       owner + "/" + doc + "/" + at.Format("150405") + ".zip",
		Format:     compositor.PNG,
		Requested:  3,
		Rendered:   2,
		SizeBytes:  1024,
		CreatedAt:  at,
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
}

func TestRecordAndList(t *testing.T) {
	s := setupTestStore(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	record(t, s, "alice", "d1", base)
	record(t, s, "alice", "d2", base.Add(time.Minute))
	record(t, s, "bob", "d3", base.Add(2*time.Minute))

	got, err := s.List(context.Background(), "alice", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].DocumentID != "d2" || got[1].DocumentID != "d1" {
		t.Errorf("expected newest first, got %s then %s", got[0].DocumentID, got[1].DocumentID)
	}
	e := got[1]
	if e.Format != compositor.PNG || e.Requested != 3 || e.Rendered != 2 || e.SizeBytes != 1024 {
		t.Errorf("unexpected entry %+v", e)
	}
	if !e.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", e.CreatedAt, base)
	}

	got, err = s.List(context.Background(), "alice", 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("limit ignored: %d entries", len(got))
	}
}

func TestRecordDefaultsTimestamp(t *testing.T) {
	s := setupTestStore(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	if err := s.Record(context.Background(), exporter.Record{DocumentID: "d", OwnerID: "o", Format: compositor.JPEG}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	got, err := s.List(context.Background(), "o", 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("List = %v, %v", got, err)
	}
	if !got[0].CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, fixed)
	}
}

func TestExpire(t *testing.T) {
	s := setupTestStore(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	record(t, s, "o", "old", now.Add(-48*time.Hour))
	record(t, s, "o", "new", now.Add(-time.Hour))

	expired, err := s.Expire(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if len(expired) != 1 || expired[0].DocumentID != "old" {
		t.Fatalf("expired = %+v", expired)
	}
	left, _ := s.List(context.Background(), "o", 0)
	if len(left) != 1 || left[0].DocumentID != "new" {
		t.Errorf("remaining = %+v", left)
	}
}

func TestCleanupScheduler(t *testing.T) {
	s := setupTestStore(t)
	record(t, s, "o", "stale", time.Now().Add(-time.Hour))

	var mu sync.Mutex
	var got []Entry
	done := make(chan struct{})
	stop := s.StartCleanupScheduler(time.Minute, 10*time.Millisecond, func(e []Entry) {
		mu.Lock()
		got = append(got, e...)
		mu.Unlock()
		close(done)
	})
	defer stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup did not run")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].DocumentID != "stale" {
		t.Errorf("expired = %+v", got)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	record(t, s, "o", "d", time.Now())
	s.Close()

	s, err = Open(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	got, _ := s.List(context.Background(), "o", 0)
	if len(got) != 1 {
		t.Errorf("expected 1 entry after reopen, got %d", len(got))
	}
}

func TestPragmasOnEveryConnection(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := range 3 {
		conn, err := s.db.Conn(ctx)
		if err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		defer conn.Close()

		var timeout int
		if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("busy_timeout: %v", err)
		}
		if timeout != 5000 {
			t.Errorf("conn %d: busy_timeout = %d, want 5000", i, timeout)
		}
		var mode string
		if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("journal_mode: %v", err)
		}
		if mode != "wal" {
			t.Errorf("conn %d: journal_mode = %q, want wal", i, mode)
		}
	}
}
