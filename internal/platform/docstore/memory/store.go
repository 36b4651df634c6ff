// Package memory is a process-local document store used by default and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Apurer/dogwalk-api/internal/platform/docstore"
)

var _ docstore.Store = (*Store)(nil)

// Store keeps documents in a map keyed by path and fans out changes through a hub.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*docstore.Document
	hub  *docstore.Hub
	now  func() time.Time
	down error
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		docs: map[string]*docstore.Document{},
		hub:  docstore.NewHub(),
		now:  time.Now,
	}
}

// WithClock overrides the time source for deterministic testing.
func (s *Store) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// FailWith makes every subsequent call fail with err wrapped in ErrUnavailable; nil restores service.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = err
}

// Subscriptions reports how many subscriptions are live.
func (s *Store) Subscriptions() int {
	return s.hub.Len()
}

// Get loads a document by path.
func (s *Store) Get(_ context.Context, path string) (*docstore.Document, error) {
	if _, _, err := docstore.SplitPath(path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.unavailable(); err != nil {
		return nil, err
	}
	doc, ok := s.docs[path]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return doc.Clone(), nil
}

// Set writes fields to a document, creating it when missing.
func (s *Store) Set(_ context.Context, path string, fields docstore.Fields, opts ...docstore.SetOption) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}
	normalized, err := docstore.Normalize(fields)
	if err != nil {
		return err
	}
	options := docstore.ResolveSetOptions(opts...)

	s.mu.Lock()
	if err := s.unavailable(); err != nil {
		s.mu.Unlock()
		return err
	}
	now := s.now()
	existing, ok := s.docs[path]
	switch {
	case !ok:
		s.docs[path] = &docstore.Document{Collection: collection, ID: id, Fields: normalized, CreateTime: now, UpdateTime: now}
	case options.Merge:
		existing.Fields = normalized.MergeInto(existing.Fields)
		existing.UpdateTime = now
	default:
		existing.Fields = normalized
		existing.UpdateTime = now
	}
	s.mu.Unlock()

	s.hub.Publish(collection, id)
	return nil
}

// Add creates a document with a generated, creation-ordered ID.
func (s *Store) Add(_ context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	normalized, err := docstore.Normalize(fields)
	if err != nil {
		return "", err
	}
	id := ulid.Make().String()

	s.mu.Lock()
	if err := s.unavailable(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	now := s.now()
	doc := &docstore.Document{Collection: collection, ID: id, Fields: normalized, CreateTime: now, UpdateTime: now}
	s.docs[doc.Path()] = doc
	s.mu.Unlock()

	s.hub.Publish(collection, id)
	return id, nil
}

// RunTransaction applies fn to an existing document while holding the write lock.
func (s *Store) RunTransaction(_ context.Context, path string, fn docstore.TransactionFunc) (*docstore.Document, error) {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if err := s.unavailable(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	existing, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return nil, docstore.ErrNotFound
	}
	patch, err := fn(existing.Clone())
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", docstore.ErrAborted, err)
	}
	normalized, err := docstore.Normalize(patch)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if len(normalized) > 0 {
		existing.Fields = normalized.MergeInto(existing.Fields)
		existing.UpdateTime = s.now()
	}
	result := existing.Clone()
	s.mu.Unlock()

	if len(normalized) > 0 {
		s.hub.Publish(collection, id)
	}
	return result, nil
}

// Query returns the documents currently matching q.
func (s *Store) Query(_ context.Context, q docstore.Query) (docstore.Snapshot, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return docstore.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.unavailable(); err != nil {
		return docstore.Snapshot{}, err
	}
	return s.snapshotLocked(q), nil
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

// Close releases every subscription.
func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

func (s *Store) snapshotLocked(q docstore.Query) docstore.Snapshot {
	docs := make([]*docstore.Document, 0)
	for _, doc := range s.docs {
		if q.Matches(doc) {
			docs = append(docs, doc.Clone())
		}
	}
	docstore.SortByCreation(docs)
	return docstore.Snapshot{Query: q, Documents: docs}
}

func (s *Store) unavailable() error {
	if s.down == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", docstore.ErrUnavailable, s.down)
}
