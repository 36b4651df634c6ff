package ports

import (
	"context"

	ownertypes "github.com/Apurer/dogwalk-api/internal/domains/owners/application/types"
	"github.com/Apurer/dogwalk-api/internal/domains/owners/domain"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

// Service defines the owner profile use cases exposed to adapters.
type Service interface {
	AddPet(ctx context.Context, input ownertypes.AddPetInput) (*ownertypes.PetProjection, error)
	ListPets(ctx context.Context, caller auth.Caller) ([]*ownertypes.PetProjection, error)
	WatchPets(ctx context.Context, caller auth.Caller, listener PetListListener) (Subscription, error)
	GetPaymentMethod(ctx context.Context, caller auth.Caller) (*domain.PaymentMethod, error)
	SavePaymentMethod(ctx context.Context, input ownertypes.SavePaymentMethodInput) (*domain.PaymentMethod, error)
}
