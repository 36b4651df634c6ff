package ports

import (
	"context"
	"errors"

	"github.com/Apurer/dogwalk-api/internal/domains/walks/domain"
	"github.com/Apurer/dogwalk-api/internal/shared/projection"
)

var (
	ErrNotFound = errors.New("walk not found")
	// ErrUnavailable wraps failures of the backing store.
	ErrUnavailable = errors.New("walk store unavailable")
)

// Subscription releases a live watch.
type Subscription interface {
	Unsubscribe()
}

// WalkListener receives the latest state of a watched walk; p is nil when the walk does not exist.
type WalkListener func(p *projection.Projection[*domain.Walk], err error)

// WalkListListener receives the latest result of a watched walk query, oldest first.
type WalkListListener func(list []*projection.Projection[*domain.Walk], err error)

// MutateFunc changes a walk in place; returning an error discards the change.
type MutateFunc func(walk *domain.Walk) error

// Repository persists walks. Update is atomic with respect to concurrent updates of the same walk.
type Repository interface {
	Create(ctx context.Context, walk *domain.Walk) (*projection.Projection[*domain.Walk], error)
	GetByID(ctx context.Context, id string) (*projection.Projection[*domain.Walk], error)
	Update(ctx context.Context, id string, mutate MutateFunc) (*projection.Projection[*domain.Walk], error)
	ListByStatus(ctx context.Context, status domain.Status) ([]*projection.Projection[*domain.Walk], error)
	ListByOwner(ctx context.Context, ownerID string) ([]*projection.Projection[*domain.Walk], error)
	WatchByID(ctx context.Context, id string, listener WalkListener) (Subscription, error)
	WatchByStatus(ctx context.Context, status domain.Status, listener WalkListListener) (Subscription, error)
	WatchByOwner(ctx context.Context, ownerID string, listener WalkListListener) (Subscription, error)
}
