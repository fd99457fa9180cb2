package firestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/xid"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
)

// These tests need a running emulator, e.g.
// gcloud emulators firestore start --host-port=localhost:8686
func emulatorStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	s, err := Open(context.Background(), "gamesocial-test")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresProject(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty project id")
	}
}

func TestInvalidPathsRejectedBeforeRPC(t *testing.T) {
	s := &Store{}
	ctx := context.Background()
	if _, err := s.Get(ctx, "users"); !errors.Is(err, docstore.ErrInvalidPath) {
		t.Fatalf("Get err = %v", err)
	}
	if _, err := s.List(ctx, docstore.Query{Collection: "users/u1"}); !errors.Is(err, docstore.ErrInvalidPath) {
		t.Fatalf("List err = %v", err)
	}
	if err := s.Increment(ctx, "games/1/comments/c1", "likes.count", 1); !errors.Is(err, docstore.ErrInvalidPath) {
		t.Fatalf("Increment err = %v", err)
	}
	if err := s.Update(ctx, "games/1/comments/c1", docstore.Fields{"a/b": 1}); !errors.Is(err, docstore.ErrInvalidPath) {
		t.Fatalf("Update err = %v", err)
	}
}

func TestEmulator_RoundTrip(t *testing.T) {
	s := emulatorStore(t)
	ctx := context.Background()
	col := "users/" + xid.New().String() + "/notifications"
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 3; i++ {
		if _, err := s.Add(ctx, col, docstore.Fields{"timestamp": base.Add(time.Duration(i) * time.Second), "n": i}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	got, err := s.List(ctx, docstore.Query{Collection: col, OrderBy: "timestamp", Desc: true, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Fields["n"] != int64(2) {
		t.Fatalf("List = %+v", got)
	}

	path := got[0].Path
	if err := s.Delete(ctx, path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, path); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Get after delete err = %v", err)
	}
}

func TestEmulator_Subscribe(t *testing.T) {
	s := emulatorStore(t)
	ctx := context.Background()
	col := "users/" + xid.New().String() + "/played"

	sub, err := s.Subscribe(ctx, docstore.Query{Collection: col})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case snaps := <-sub.C:
		if len(snaps) != 0 {
			t.Fatalf("initial = %d", len(snaps))
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no initial snapshot")
	}

	_ = s.Set(ctx, col+"/1", docstore.Fields{"name": "A"})
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snaps := <-sub.C:
			if len(snaps) == 1 {
				return
			}
		case <-deadline:
			t.Fatalf("change not observed")
		}
	}
}

func TestEmulator_IncrementAndUpdate(t *testing.T) {
	s := emulatorStore(t)
	ctx := context.Background()
	path := "games/" + xid.New().String() + "/comments/c1"

	if err := s.Increment(ctx, path, "likes", 1); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Increment on missing doc err = %v", err)
	}
	if err := s.Set(ctx, path, docstore.Fields{"text": "hi", "likes": 0}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Increment(ctx, path, "likes", 1); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
	if err := s.Update(ctx, path, docstore.Fields{"text": "edited"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	snap, err := s.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Fields["text"] != "edited" || snap.Fields["likes"] != int64(3) {
		t.Fatalf("fields = %#v", snap.Fields)
	}
}
