package ports

import (
	"context"
	"errors"

	ownertypes "github.com/Apurer/dogwalk-api/internal/domains/owners/application/types"
	"github.com/Apurer/dogwalk-api/internal/domains/owners/domain"
)

var (
	ErrNotFound = errors.New("owner record not found")
	// ErrUnavailable wraps failures of the backing store.
	ErrUnavailable = errors.New("owner store unavailable")
)

// Subscription releases a live watch.
type Subscription interface {
	Unsubscribe()
}

// PetListListener receives an owner's pets, oldest first.
type PetListListener func(pets []*ownertypes.PetProjection, err error)

// PetRepository persists pet profiles under their owner.
type PetRepository interface {
	Add(ctx context.Context, pet *domain.PetProfile) (*ownertypes.PetProjection, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*ownertypes.PetProjection, error)
	WatchByOwner(ctx context.Context, ownerID string, listener PetListListener) (Subscription, error)
}

// ProfileRepository persists the per-user fields stored on the user profile.
type ProfileRepository interface {
	// GetPaymentMethod returns nil when none is configured.
	GetPaymentMethod(ctx context.Context, ownerID string) (*domain.PaymentMethod, error)
	SavePaymentMethod(ctx context.Context, ownerID string, method *domain.PaymentMethod) error
}
