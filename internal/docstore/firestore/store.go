// Package firestore implements docstore.Store on Google Cloud Firestore.
// Paths map one-to-one onto Firestore document and collection paths and
// Subscribe is backed by native query snapshot listeners.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gfs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
)

// Store is a docstore.Store over a Firestore client.
type Store struct {
	client *gfs.Client
}

// Open connects to projectID. FIRESTORE_EMULATOR_HOST is honored by the
// client library.
func Open(ctx context.Context, projectID string, opts ...option.ClientOption) (*Store, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("firestore: project id is required")
	}
	c, err := gfs.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: new client: %w", err)
	}
	return &Store{client: c}, nil
}

// New wraps an existing client.
func New(c *gfs.Client) *Store { return &Store{client: c} }

func (s *Store) doc(path string) (*gfs.DocumentRef, error) {
	if _, _, err := docstore.SplitDoc(path); err != nil {
		return nil, err
	}
	ref := s.client.Doc(path)
	if ref == nil {
		return nil, docstore.ErrInvalidPath
	}
	return ref, nil
}

func (s *Store) collection(path string) (*gfs.CollectionRef, error) {
	if err := docstore.ValidateCollection(path); err != nil {
		return nil, err
	}
	ref := s.client.Collection(path)
	if ref == nil {
		return nil, docstore.ErrInvalidPath
	}
	return ref, nil
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	ref, err := s.doc(path)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return docstore.Snapshot{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return convert(path, snap), nil
}

func (s *Store) Set(ctx context.Context, path string, fields docstore.Fields) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if fields == nil {
		fields = docstore.Fields{}
	}
	_, err = ref.Set(ctx, map[string]any(fields))
	return err
}

func (s *Store) Update(ctx context.Context, path string, fields docstore.Fields) error {
	ups := make([]gfs.Update, 0, len(fields))
	for k, v := range fields {
		if err := docstore.ValidateField(k); err != nil {
			return err
		}
		ups = append(ups, gfs.Update{Path: k, Value: v})
	}
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if len(ups) == 0 {
		return nil
	}
	_, err = ref.Update(ctx, ups)
	return notFound(err)
}

// Increment uses a server-side field transform. Firestore does not clamp,
// so counters may go negative under a torn write.
func (s *Store) Increment(ctx context.Context, path, field string, delta int64) error {
	if err := docstore.ValidateField(field); err != nil {
		return err
	}
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Update(ctx, []gfs.Update{{Path: field, Value: gfs.Increment(delta)}})
	return notFound(err)
}

func notFound(err error) error {
	if status.Code(err) == codes.NotFound {
		return docstore.ErrNotFound
	}
	return err
}

func (s *Store) Delete(ctx context.Context, path string) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	col, err := s.collection(collection)
	if err != nil {
		return "", err
	}
	id := docstore.NewID()
	if _, err := col.Doc(id).Set(ctx, map[string]any(fields)); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) query(q docstore.Query) (gfs.Query, error) {
	col, err := s.collection(q.Collection)
	if err != nil {
		return gfs.Query{}, err
	}
	dir := gfs.Asc
	if q.Desc {
		dir = gfs.Desc
	}
	field := q.OrderBy
	if field == "" {
		field = gfs.DocumentID
	}
	fq := col.OrderBy(field, dir)
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq, nil
}

func (s *Store) List(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	fq, err := s.query(q)
	if err != nil {
		return nil, err
	}
	docs, err := fq.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	return convertAll(q.Collection, docs), nil
}

func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (*docstore.Subscription, error) {
	fq, err := s.query(q)
	if err != nil {
		return nil, err
	}
	return docstore.NewSubscription(ctx, func(ctx context.Context, emit docstore.Emitter) error {
		it := fq.Snapshots(ctx)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if errors.Is(err, iterator.Done) || ctx.Err() != nil {
				return nil
			}
			if err != nil {
				return err
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				return err
			}
			if !emit(ctx, convertAll(q.Collection, docs)) {
				return nil
			}
		}
	}), nil
}

func (s *Store) Close() error { return s.client.Close() }

func convertAll(collection string, docs []*gfs.DocumentSnapshot) []docstore.Snapshot {
	out := make([]docstore.Snapshot, 0, len(docs))
	for _, d := range docs {
		out = append(out, convert(docstore.Join(collection, d.Ref.ID), d))
	}
	return out
}

func convert(path string, d *gfs.DocumentSnapshot) docstore.Snapshot {
	return docstore.Snapshot{
		Path:       path,
		ID:         d.Ref.ID,
		Fields:     docstore.Fields(d.Data()),
		CreateTime: d.CreateTime,
		UpdateTime: d.UpdateTime,
	}
}

var _ docstore.Store = (*Store)(nil)
