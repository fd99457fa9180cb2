// Package docstore defines the hierarchical document store the social engine
// runs on: key-path addressed collections and documents with CRUD and live
// subscriptions, in the style of Firestore.
//
// Paths alternate collection and document segments:
//
//	users                       collection
//	users/u1                    document
//	users/u1/notifications      collection
//	users/u1/notifications/n1   document
//
// Writes are single-document and last-write-wins, except Increment, which
// is applied atomically by the backend. No cross-document
// transactions are offered; multi-document operations built on top of a
// Store are best-effort by construction.
//
// Backends live in sub-packages (sqlstore, firestore). The Hub in this
// package carries change signals for backends without native listeners.
package docstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/xid"
)

var (
	// ErrNotFound is returned by Get when the document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrInvalidPath is returned for malformed collection/document paths.
	ErrInvalidPath = errors.New("docstore: invalid path")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("docstore: store closed")
)

// Fields is the payload of a document.
type Fields map[string]any

// Snapshot is a document read at a point in time.
type Snapshot struct {
	Path       string
	ID         string
	Fields     Fields
	CreateTime time.Time
	UpdateTime time.Time
}

// Query selects documents of one collection. OrderBy names a field; an
// empty OrderBy sorts by document id. Limit <= 0 means unbounded.
type Query struct {
	Collection string
	OrderBy    string
	Desc       bool
	Limit      int
}

// Store is the document store contract consumed by the repositories.
//
// Implementations must be safe for concurrent use and honor ctx on every
// blocking call.
type Store interface {
	// Get reads one document or returns ErrNotFound.
	Get(ctx context.Context, path string) (Snapshot, error)
	// Set creates or fully replaces a document.
	Set(ctx context.Context, path string, fields Fields) error
	// Update overwrites only the named top-level fields of an existing
	// document, or returns ErrNotFound.
	Update(ctx context.Context, path string, fields Fields) error
	// Increment atomically adds delta to a numeric top-level field of an
	// existing document (a missing field counts as 0), or returns
	// ErrNotFound.
	Increment(ctx context.Context, path, field string, delta int64) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error
	// Add creates a document with a generated id and returns that id.
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	// List runs q once.
	List(ctx context.Context, q Query) ([]Snapshot, error)
	// Subscribe runs q and pushes a fresh result set after every change to
	// the collection until the subscription is closed or ctx is done.
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
	// Close releases backend resources.
	Close() error
}

// NewID returns a 20-character, roughly time-ordered document id.
func NewID() string { return xid.New().String() }

// Join builds a path from segments.
func Join(parts ...string) string { return strings.Join(parts, "/") }

func segments(path string) []string {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return nil
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil
		}
	}
	return parts
}

// SplitDoc splits a document path into its parent collection and id.
func SplitDoc(path string) (collection, id string, err error) {
	parts := segments(path)
	if len(parts) == 0 || len(parts)%2 != 0 {
		return "", "", ErrInvalidPath
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}

// ValidateField checks that name is a plain top-level field name.
func ValidateField(name string) error {
	if name == "" || strings.ContainsAny(name, "./\"$`[] ") {
		return ErrInvalidPath
	}
	return nil
}

// ValidateCollection checks that path names a collection.
func ValidateCollection(path string) error {
	parts := segments(path)
	if len(parts) == 0 || len(parts)%2 != 1 {
		return ErrInvalidPath
	}
	return nil
}
