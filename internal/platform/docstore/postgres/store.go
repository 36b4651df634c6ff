// Package postgres stores documents as jsonb rows and fans changes out through LISTEN/NOTIFY.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/dogwalk-api/internal/platform/docstore"
)

// ChangeChannel is the NOTIFY channel every commit is announced on.
const ChangeChannel = "docstore_changes"

var _ docstore.Store = (*Store)(nil)

type documentRecord struct {
	Collection string          `gorm:"primaryKey;column:collection;size:512"`
	ID         string          `gorm:"primaryKey;column:id;size:64"`
	Fields     docstore.Fields `gorm:"column:fields;type:jsonb;serializer:json"`
	CreatedAt  time.Time       `gorm:"column:created_at;index"`
	UpdatedAt  time.Time       `gorm:"column:updated_at"`
}

func (documentRecord) TableName() string { return "documents" }

type changeNotice struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Store is a PostgreSQL-backed document store.
type Store struct {
	db       *gorm.DB
	hub      *docstore.Hub
	listener *pq.Listener
	logger   *slog.Logger
	now      func() time.Time
	done     chan struct{}
}

// Option customizes the store.
type Option func(*Store)

// WithLogger sets the logger used by the change feed.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore wires a store over db. When listenDSN is non-empty a pq.Listener subscribes to
// ChangeChannel so writes made by other processes reach local subscriptions; otherwise only
// writes made through this store are observed. Caller owns the DB lifecycle.
func NewStore(db *gorm.DB, listenDSN string, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("postgres document store requires a database")
	}
	s := &Store{
		db:     db,
		hub:    docstore.NewHub(),
		logger: slog.Default(),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if listenDSN != "" {
		listener := pq.NewListener(listenDSN, time.Second, time.Minute, s.onListenerEvent)
		if err := listener.Listen(ChangeChannel); err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("%w: listen %s: %w", docstore.ErrUnavailable, ChangeChannel, err)
		}
		s.listener = listener
		go s.feed()
	}
	return s, nil
}

// Get loads a document by path.
func (s *Store) Get(ctx context.Context, path string) (*docstore.Document, error) {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return nil, err
	}
	var rec documentRecord
	err = s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return rec.toDocument(), nil
}

// Set upserts a document. With Merge the supplied top-level fields are folded onto the stored ones.
func (s *Store) Set(ctx context.Context, path string, fields docstore.Fields, opts ...docstore.SetOption) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}
	normalized, err := docstore.Normalize(fields)
	if err != nil {
		return err
	}
	fieldsExpr := gorm.Expr("excluded.fields")
	if docstore.ResolveSetOptions(opts...).Merge {
		fieldsExpr = gorm.Expr("documents.fields || excluded.fields")
	}
	now := s.timestamp()
	rec := documentRecord{Collection: collection, ID: id, Fields: normalized, CreatedAt: now, UpdatedAt: now}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "fields"}, Value: fieldsExpr},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
		}).Create(&rec).Error; err != nil {
			return err
		}
		return notify(tx, collection, id)
	})
	if err != nil {
		return translate(err)
	}
	s.hub.Publish(collection, id)
	return nil
}

// Add inserts a document with a generated, creation-ordered ID.
func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	normalized, err := docstore.Normalize(fields)
	if err != nil {
		return "", err
	}
	now := s.timestamp()
	rec := documentRecord{Collection: collection, ID: ulid.Make().String(), Fields: normalized, CreatedAt: now, UpdatedAt: now}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		return notify(tx, collection, rec.ID)
	})
	if err != nil {
		return "", translate(err)
	}
	s.hub.Publish(collection, rec.ID)
	return rec.ID, nil
}

// RunTransaction locks the document row, hands the current state to fn and merges its result.
func (s *Store) RunTransaction(ctx context.Context, path string, fn docstore.TransactionFunc) (*docstore.Document, error) {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return nil, err
	}
	var (
		result   *docstore.Document
		aborted  error
		modified bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec documentRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("collection = ? AND id = ?", collection, id).
			First(&rec).Error; err != nil {
			return err
		}
		patch, err := fn(rec.toDocument())
		if err != nil {
			aborted = err
			return err
		}
		normalized, err := docstore.Normalize(patch)
		if err != nil {
			aborted = err
			return err
		}
		if len(normalized) == 0 {
			result = rec.toDocument()
			return nil
		}
		rec.Fields = normalized.MergeInto(rec.Fields)
		rec.UpdatedAt = s.timestamp()
		raw, err := json.Marshal(rec.Fields)
		if err != nil {
			return err
		}
		if err := tx.Model(&documentRecord{}).
			Where("collection = ? AND id = ?", collection, id).
			Updates(map[string]any{"fields": gorm.Expr("?::jsonb", string(raw)), "updated_at": rec.UpdatedAt}).Error; err != nil {
			return err
		}
		modified = true
		result = rec.toDocument()
		return notify(tx, collection, id)
	})
	if aborted != nil {
		return nil, fmt.Errorf("%w: %w", docstore.ErrAborted, aborted)
	}
	if err != nil {
		return nil, translate(err)
	}
	if modified {
		s.hub.Publish(collection, id)
	}
	return result, nil
}

// Query returns the documents matching q ordered by creation.
func (s *Store) Query(ctx context.Context, q docstore.Query) (docstore.Snapshot, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return docstore.Snapshot{}, err
	}
	filters, err := q.NormalizedFilters()
	if err != nil {
		return docstore.Snapshot{}, err
	}
	tx := s.db.WithContext(ctx).Where("collection = ?", q.Collection)
	if len(filters) > 0 {
		raw, err := json.Marshal(filters)
		if err != nil {
			return docstore.Snapshot{}, err
		}
		tx = tx.Where("fields @> ?::jsonb", string(raw))
	}
	var recs []documentRecord
	if err := tx.Order("created_at ASC").Order("id ASC").Find(&recs).Error; err != nil {
		return docstore.Snapshot{}, translate(err)
	}
	docs := make([]*docstore.Document, 0, len(recs))
	for i := range recs {
		doc := recs[i].toDocument()
		// jsonb containment also matches array elements; keep equality semantics.
		if q.Matches(doc) {
			docs = append(docs, doc)
		}
	}
	return docstore.Snapshot{Query: q, Documents: docs}, nil
}

// SubscribeDocument watches one document.
func (s *Store) SubscribeDocument(ctx context.Context, path string, listener docstore.DocumentListener) (docstore.Subscription, error) {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return nil, err
	}
	return s.hub.Register(ctx, collection, id, func(ctx context.Context) {
		doc, err := s.Get(ctx, path)
		if errors.Is(err, docstore.ErrNotFound) {
			doc, err = nil, nil
		}
		if ctx.Err() != nil {
			return
		}
		listener(doc, err)
	}), nil
}

// SubscribeQuery watches the result of a query.
func (s *Store) SubscribeQuery(ctx context.Context, q docstore.Query, listener docstore.QueryListener) (docstore.Subscription, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}
	return s.hub.Register(ctx, q.Collection, "", func(ctx context.Context) {
		snapshot, err := s.Query(ctx, q)
		if ctx.Err() != nil {
			return
		}
		listener(snapshot, err)
	}), nil
}

// Subscriptions reports how many subscriptions are live.
func (s *Store) Subscriptions() int {
	return s.hub.Len()
}

// Close stops the change feed and releases every subscription. The DB is left open.
func (s *Store) Close() error {
	s.hub.Close()
	if s.listener == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	return s.listener.Close()
}

func (s *Store) feed() {
	for {
		select {
		case <-s.done:
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Reconnected: notifications may have been missed.
				s.hub.PublishAll()
				continue
			}
			var notice changeNotice
			if err := json.Unmarshal([]byte(n.Extra), &notice); err != nil {
				s.logger.Warn("docstore: malformed change notice", slog.String("payload", n.Extra), slog.String("error", err.Error()))
				continue
			}
			s.hub.Publish(notice.Collection, notice.ID)
		}
	}
}

func (s *Store) onListenerEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		if err != nil {
			s.logger.Warn("docstore: change feed connection problem", slog.String("error", err.Error()))
		}
	case pq.ListenerEventReconnected:
		s.logger.Info("docstore: change feed reconnected")
	}
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (r documentRecord) toDocument() *docstore.Document {
	fields := r.Fields.Clone()
	if fields == nil {
		fields = docstore.Fields{}
	}
	return &docstore.Document{
		Collection: r.Collection,
		ID:         r.ID,
		Fields:     fields,
		CreateTime: r.CreatedAt,
		UpdateTime: r.UpdatedAt,
	}
}

func notify(tx *gorm.DB, collection, id string) error {
	payload, err := json.Marshal(changeNotice{Collection: collection, ID: id})
	if err != nil {
		return err
	}
	return tx.Exec("SELECT pg_notify(?, ?)", ChangeChannel, string(payload)).Error
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return docstore.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", docstore.ErrUnavailable, err)
	}
}
