package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/docstore/sqlstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/repo"
)

var errInjected = errors.New("injected store failure")

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	st, err := sqlstore.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// faultyStore fails writes whose path starts with one of the registered
// prefixes.
type faultyStore struct {
	docstore.Store

	mu    sync.Mutex
	fails []string
}

func (f *faultyStore) failOn(prefix string) {
	f.mu.Lock()
	f.fails = append(f.fails, prefix)
	f.mu.Unlock()
}

func (f *faultyStore) heal() {
	f.mu.Lock()
	f.fails = nil
	f.mu.Unlock()
}

func (f *faultyStore) broken(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.fails {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (f *faultyStore) Set(ctx context.Context, path string, fields docstore.Fields) error {
	if f.broken(path) {
		return errInjected
	}
	return f.Store.Set(ctx, path, fields)
}

func (f *faultyStore) Delete(ctx context.Context, path string) error {
	if f.broken(path) {
		return errInjected
	}
	return f.Store.Delete(ctx, path)
}

func (f *faultyStore) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if f.broken(collection) {
		return "", errInjected
	}
	return f.Store.Add(ctx, collection, fields)
}

type callerKey struct{}

// asUser returns a context carrying uid as the signed-in caller.
func asUser(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, callerKey{}, domain.Caller{UserID: uid, DisplayName: "name-" + uid})
}

// ctxIdentity reads the caller stashed by asUser.
var ctxIdentity = IdentityFunc(func(ctx context.Context) (domain.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(domain.Caller)
	return c, ok
})

func seedUser(t *testing.T, st docstore.Store, id, username string) {
	t.Helper()
	if err := repo.PutUser(context.Background(), st, domain.UserIdentity{ID: id, Username: username, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

// stepClock returns a clock that advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := cur
		cur = cur.Add(step)
		return t
	}
}

func recvStatus(t *testing.T, st *StatusStream) []domain.StatusEntry {
	t.Helper()
	select {
	case items, ok := <-st.C:
		if !ok {
			t.Fatalf("stream closed: %v", st.Err())
		}
		return items
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for stream")
	}
	return nil
}

func strptr(s string) *string { return &s }
