// Package docstore defines the shared document store the walk marketplace is built on:
// point reads, merge writes, single-document transactions and push-based change
// subscriptions filtered by a query.
package docstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidPath is returned for malformed collection or document paths.
	ErrInvalidPath = errors.New("invalid document path")
	// ErrUnavailable wraps failures of the underlying storage backend.
	ErrUnavailable = errors.New("document store unavailable")
	// ErrAborted wraps the error returned by a transaction function that rejected its write.
	ErrAborted = errors.New("transaction aborted")
)

// Document is one stored record.
type Document struct {
	Collection string
	ID         string
	Fields     Fields
	CreateTime time.Time
	UpdateTime time.Time
}

// Path returns the full document path.
func (d *Document) Path() string {
	return d.Collection + "/" + d.ID
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	copy := *d
	copy.Fields = d.Fields.Clone()
	return &copy
}

// Snapshot is the full result of a query at one point in time, ordered by creation.
type Snapshot struct {
	Query     Query
	Documents []*Document
}

// DocumentListener receives the current state of a watched document; doc is nil when it does not exist.
type DocumentListener func(doc *Document, err error)

// QueryListener receives the current result of a watched query.
type QueryListener func(snapshot Snapshot, err error)

// Subscription is a live change subscription. Unsubscribe is idempotent; a delivery already
// in flight when it is called may still complete.
type Subscription interface {
	Unsubscribe()
}

// TransactionFunc inspects the current document and returns the fields to merge onto it.
// It must not call back into the store.
type TransactionFunc func(current *Document) (Fields, error)

// SetOption tunes Set.
type SetOption func(*SetOptions)

// SetOptions is the resolved form of the options passed to Set.
type SetOptions struct {
	Merge bool
}

// Merge writes only the supplied fields, keeping the rest of the document.
func Merge() SetOption {
	return func(o *SetOptions) { o.Merge = true }
}

// ResolveSetOptions folds options into SetOptions.
func ResolveSetOptions(opts ...SetOption) SetOptions {
	var resolved SetOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return resolved
}

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, path string) (*Document, error)
	Set(ctx context.Context, path string, fields Fields, opts ...SetOption) error
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	RunTransaction(ctx context.Context, path string, fn TransactionFunc) (*Document, error)
	Query(ctx context.Context, query Query) (Snapshot, error)
	SubscribeDocument(ctx context.Context, path string, listener DocumentListener) (Subscription, error)
	SubscribeQuery(ctx context.Context, query Query, listener QueryListener) (Subscription, error)
	Close() error
}

// SplitPath separates a document path into its collection path and document ID.
func SplitPath(path string) (collection, id string, err error) {
	segments, err := segmentsOf(path)
	if err != nil {
		return "", "", err
	}
	if len(segments)%2 != 0 {
		return "", "", ErrInvalidPath
	}
	last := len(segments) - 1
	return strings.Join(segments[:last], "/"), segments[last], nil
}

// ValidateCollection checks that path names a collection.
func ValidateCollection(path string) error {
	segments, err := segmentsOf(path)
	if err != nil {
		return err
	}
	if len(segments)%2 != 1 {
		return ErrInvalidPath
	}
	return nil
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func segmentsOf(path string) ([]string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, ErrInvalidPath
	}
	segments := strings.Split(path, "/")
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return nil, ErrInvalidPath
		}
	}
	return segments, nil
}
