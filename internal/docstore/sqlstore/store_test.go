package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "does-not-exist", "app.db")
	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}
	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpen_FileBackedSetsPragmas(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "social.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	var journalMode string
	if err := s.db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}
	var busyMS int
	if err := s.db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil || busyMS != 5000 {
		t.Fatalf("busy_timeout = %d, %v", busyMS, err)
	}
	if !s.db.Migrator().HasTable(&document{}) {
		t.Fatalf("documents table missing")
	}
}

func TestSetGetDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	at := time.Date(2024, 2, 3, 4, 5, 6, 7, time.UTC)

	if err := s.Set(ctx, "users/u1/played/42", docstore.Fields{"name": "Celeste", "cover": nil, "addedAt": at}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	snap, err := s.Get(ctx, "users/u1/played/42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.ID != "42" || snap.Fields["name"] != "Celeste" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if v, ok := snap.Fields["cover"]; !ok || v != nil {
		t.Fatalf("null cover lost: %#v", snap.Fields)
	}
	if got, ok := docstore.Time(snap.Fields["addedAt"]); !ok || !got.Equal(at) {
		t.Fatalf("addedAt = %v", snap.Fields["addedAt"])
	}

	// full replace
	if err := s.Set(ctx, "users/u1/played/42", docstore.Fields{"name": "Celeste 2"}); err != nil {
		t.Fatalf("Set replace: %v", err)
	}
	snap, _ = s.Get(ctx, "users/u1/played/42")
	if _, ok := snap.Fields["cover"]; ok || snap.Fields["name"] != "Celeste 2" {
		t.Fatalf("replace kept old fields: %#v", snap.Fields)
	}

	if err := s.Delete(ctx, "users/u1/played/42"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "users/u1/played/42"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if _, err := s.Get(ctx, "users/u1/played/42"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Get after delete err = %v", err)
	}
}

func TestInvalidPaths(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.Set(ctx, "users", docstore.Fields{}); !errors.Is(err, docstore.ErrInvalidPath) {
		t.Fatalf("Set(collection) err = %v", err)
	}
	if _, err := s.List(ctx, docstore.Query{Collection: "users/u1"}); !errors.Is(err, docstore.ErrInvalidPath) {
		t.Fatalf("List(document) err = %v", err)
	}
	if _, err := s.Add(ctx, "users/u1", docstore.Fields{}); !errors.Is(err, docstore.ErrInvalidPath) {
		t.Fatalf("Add(document) err = %v", err)
	}
}

func TestAddAndListOrdering(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	col := "users/u1/notifications"

	for i, off := range []time.Duration{0, 3 * time.Second, 1500 * time.Millisecond} {
		if _, err := s.Add(ctx, col, docstore.Fields{"timestamp": base.Add(off), "n": i}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	// a document in a nested collection must not leak into its parent listing
	_ = s.Set(ctx, "users/u1/notifications/x/deep/y", docstore.Fields{"timestamp": base})

	got, err := s.List(ctx, docstore.Query{Collection: col, OrderBy: "timestamp", Desc: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	want := []float64{1, 2, 0}
	for i, w := range want {
		if got[i].Fields["n"] != w {
			t.Fatalf("position %d has n=%v; want %v", i, got[i].Fields["n"], w)
		}
	}

	limited, _ := s.List(ctx, docstore.Query{Collection: col, OrderBy: "timestamp", Limit: 1})
	if len(limited) != 1 || limited[0].Fields["n"] != float64(0) {
		t.Fatalf("limit/asc = %+v", limited)
	}
}

func TestSubscribe_InitialThenChanges(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	col := "users/u1/wishlist"
	_ = s.Set(ctx, col+"/1", docstore.Fields{"name": "A"})

	sub, err := s.Subscribe(ctx, docstore.Query{Collection: col})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	first := recv(t, sub)
	if len(first) != 1 {
		t.Fatalf("initial = %d docs", len(first))
	}

	_ = s.Set(ctx, col+"/2", docstore.Fields{"name": "B"})
	waitFor(t, sub, 2)

	_ = s.Delete(ctx, col+"/1")
	waitFor(t, sub, 1)
}

func TestSubscribe_CloseReleasesWatcher(t *testing.T) {
	s := newStore(t)
	col := "users/u1/played"
	sub, err := s.Subscribe(context.Background(), docstore.Query{Collection: col})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	recv(t, sub)
	sub.Close()
	if n := s.Hub().Watching(col); n != 0 {
		t.Fatalf("watchers after close = %d", n)
	}
}

func TestSubscribe_ContextCancelEnds(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := s.Subscribe(ctx, docstore.Query{Collection: "users/u1/played"})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	recv(t, sub)
	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription did not end on cancel")
	}
	if sub.Err() != nil {
		t.Fatalf("cancel should not record an error: %v", sub.Err())
	}
}

func TestClosedStore(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	_ = s.Close()
	if _, err := s.Get(context.Background(), "users/u1"); !errors.Is(err, docstore.ErrClosed) {
		t.Fatalf("err = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func recv(t *testing.T, sub *docstore.Subscription) []docstore.Snapshot {
	t.Helper()
	select {
	case snaps, ok := <-sub.C:
		if !ok {
			t.Fatalf("subscription closed: %v", sub.Err())
		}
		return snaps
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return nil
}

// waitFor drains result sets until one has n documents.
func waitFor(t *testing.T, sub *docstore.Subscription, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snaps, ok := <-sub.C:
			if !ok {
				t.Fatalf("subscription closed: %v", sub.Err())
			}
			if len(snaps) == n {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %d docs", n)
		}
	}
}

func TestUpdate_MergesNamedFields(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	path := "games/7/comments/c1"

	if err := s.Update(ctx, path, docstore.Fields{"text": "x"}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Update on missing doc err = %v", err)
	}
	if err := s.Set(ctx, path, docstore.Fields{"text": "first", "likes": 4, "platform": "PC"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Update(ctx, path, docstore.Fields{"text": "second"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	snap, err := s.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Fields["text"] != "second" || snap.Fields["likes"] != float64(4) || snap.Fields["platform"] != "PC" {
		t.Fatalf("fields = %#v", snap.Fields)
	}
	if err := s.Update(ctx, path, docstore.Fields{"a.b": 1}); !errors.Is(err, docstore.ErrInvalidPath) {
		t.Fatalf("dotted field err = %v", err)
	}
}

func TestIncrement_ConcurrentAndClamped(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	path := "games/7/comments/c1"

	if err := s.Increment(ctx, path, "likes", 1); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Increment on missing doc err = %v", err)
	}
	if err := s.Set(ctx, path, docstore.Fields{"text": "hi"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Increment(ctx, path, "likes", 1)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
	snap, _ := s.Get(ctx, path)
	if snap.Fields["likes"] != float64(n) || snap.Fields["text"] != "hi" {
		t.Fatalf("after %d increments fields = %#v", n, snap.Fields)
	}

	if err := s.Increment(ctx, path, "likes", -(n + 5)); err != nil {
		t.Fatalf("Increment down: %v", err)
	}
	snap, _ = s.Get(ctx, path)
	if snap.Fields["likes"] != float64(0) {
		t.Fatalf("likes not clamped at zero: %#v", snap.Fields["likes"])
	}
}

func TestIncrement_SignalsSubscribers(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.Set(ctx, "games/7/comments/c1", docstore.Fields{"likes": 0}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	sub, err := s.Subscribe(ctx, docstore.Query{Collection: "games/7/comments"})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	recv(t, sub)

	if err := s.Increment(ctx, "games/7/comments/c1", "likes", 1); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	select {
	case snaps := <-sub.C:
		if len(snaps) != 1 || snaps[0].Fields["likes"] != float64(1) {
			t.Fatalf("snapshot = %+v", snaps)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot after Increment")
	}
}
