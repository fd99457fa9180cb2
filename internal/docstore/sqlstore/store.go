package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
)

// document is the row backing one document.
type document struct {
	Path      string         `gorm:"primaryKey;size:512"`
	Parent    string         `gorm:"size:512;not null;index"`
	DocID     string         `gorm:"size:128;not null"`
	Data      datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (document) TableName() string { return "documents" }

// Store is a docstore.Store over GORM.
type Store struct {
	db     *gorm.DB
	hub    *docstore.Hub
	closed atomic.Bool
}

// Option configures a Store.
type Option func(*options)

type options struct {
	hub     *docstore.Hub
	tracing bool
}

// WithHub shares a change hub, e.g. one wired to a cross-process notifier.
func WithHub(h *docstore.Hub) Option { return func(o *options) { o.hub = h } }

// WithTracing attaches the OpenTelemetry GORM plugin.
func WithTracing() Option { return func(o *options) { o.tracing = true } }

// New migrates db and wraps it.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.hub == nil {
		o.hub = docstore.NewHub()
	}
	if o.tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("sqlstore: tracing plugin: %w", err)
		}
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db, hub: o.hub}, nil
}

// Open opens the SQLite database at path and wraps it.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return New(db, opts...)
}

// OpenMemory opens a fresh, uniquely named in-memory store.
func OpenMemory(opts ...Option) (*Store, error) {
	return Open(MemoryDSN("docstore_"+uuid.NewString()), opts...)
}

// Hub returns the change hub signalled by every write.
func (s *Store) Hub() *docstore.Hub { return s.hub }

func (s *Store) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	if s.closed.Load() {
		return docstore.Snapshot{}, docstore.ErrClosed
	}
	if _, _, err := docstore.SplitDoc(path); err != nil {
		return docstore.Snapshot{}, err
	}
	var row document
	err := s.db.WithContext(ctx).Where("path = ?", path).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return docstore.Snapshot{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return row.snapshot()
}

func (s *Store) Set(ctx context.Context, path string, fields docstore.Fields) error {
	if s.closed.Load() {
		return docstore.ErrClosed
	}
	parent, id, err := docstore.SplitDoc(path)
	if err != nil {
		return err
	}
	if fields == nil {
		fields = docstore.Fields{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("sqlstore: encode %s: %w", path, err)
	}
	row := document{Path: path, Parent: parent, DocID: id, Data: datatypes.JSON(data)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return err
	}
	s.hub.Publish(ctx, parent)
	return nil
}

// Update merges fields into the stored payload with json_patch, so fields
// not named are left as they are.
func (s *Store) Update(ctx context.Context, path string, fields docstore.Fields) error {
	if s.closed.Load() {
		return docstore.ErrClosed
	}
	parent, _, err := docstore.SplitDoc(path)
	if err != nil {
		return err
	}
	for k := range fields {
		if err := docstore.ValidateField(k); err != nil {
			return err
		}
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("sqlstore: encode %s: %w", path, err)
	}
	return s.apply(ctx, parent, path, gorm.Expr("json_patch(data, ?)", string(patch)))
}

// Increment rewrites one field inside a single UPDATE statement. The result
// is clamped at zero.
func (s *Store) Increment(ctx context.Context, path, field string, delta int64) error {
	if s.closed.Load() {
		return docstore.ErrClosed
	}
	parent, _, err := docstore.SplitDoc(path)
	if err != nil {
		return err
	}
	if err := docstore.ValidateField(field); err != nil {
		return err
	}
	jp := "$." + field
	return s.apply(ctx, parent, path,
		gorm.Expr("json_set(data, ?, MAX(COALESCE(json_extract(data, ?), 0) + ?, 0))", jp, jp, delta))
}

func (s *Store) apply(ctx context.Context, parent, path string, data clause.Expr) error {
	res := s.db.WithContext(ctx).Model(&document{}).Where("path = ?", path).
		UpdateColumns(map[string]any{"data": data, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return docstore.ErrNotFound
	}
	s.hub.Publish(ctx, parent)
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if s.closed.Load() {
		return docstore.ErrClosed
	}
	parent, _, err := docstore.SplitDoc(path)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("path = ?", path).Delete(&document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.hub.Publish(ctx, parent)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	id := docstore.NewID()
	if err := s.Set(ctx, docstore.Join(collection, id), fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) List(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	if s.closed.Load() {
		return nil, docstore.ErrClosed
	}
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}
	var rows []document
	if err := s.db.WithContext(ctx).Where("parent = ?", q.Collection).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]docstore.Snapshot, 0, len(rows))
	for _, r := range rows {
		snap, err := r.snapshot()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return docstore.Apply(out, q), nil
}

// Subscribe registers with the hub before the first read so no change
// between the initial result set and the next signal is missed.
func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (*docstore.Subscription, error) {
	if s.closed.Load() {
		return nil, docstore.ErrClosed
	}
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}
	return docstore.NewSubscription(ctx, func(ctx context.Context, emit docstore.Emitter) error {
		changes, stop := s.hub.Watch(q.Collection)
		defer stop()
		for {
			snaps, err := s.List(ctx, q)
			if err != nil {
				return err
			}
			if !emit(ctx, snaps) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-changes:
			}
		}
	}), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r document) snapshot() (docstore.Snapshot, error) {
	fields := docstore.Fields{}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &fields); err != nil {
			return docstore.Snapshot{}, fmt.Errorf("sqlstore: decode %s: %w", r.Path, err)
		}
	}
	return docstore.Snapshot{
		Path:       r.Path,
		ID:         r.DocID,
		Fields:     fields,
		CreateTime: r.CreatedAt,
		UpdateTime: r.UpdatedAt,
	}, nil
}

var _ docstore.Store = (*Store)(nil)
