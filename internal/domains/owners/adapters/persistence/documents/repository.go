// Package documents stores owner profiles and pets in the shared document store.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ownertypes "github.com/Apurer/dogwalk-api/internal/domains/owners/application/types"
	"github.com/Apurer/dogwalk-api/internal/domains/owners/domain"
	"github.com/Apurer/dogwalk-api/internal/domains/owners/ports"
	"github.com/Apurer/dogwalk-api/internal/platform/docstore"
	"github.com/Apurer/dogwalk-api/internal/shared/projection"
)

const (
	// UsersCollection holds one profile document per user.
	UsersCollection = "users"
	// PetsCollection is the sub-collection of a user document holding pet profiles.
	PetsCollection = "pets"

	fieldPaymentMethod = "paymentMethod"
	fieldName          = "name"
	fieldBreed         = "breed"
)

var (
	_ ports.PetRepository     = (*Repository)(nil)
	_ ports.ProfileRepository = (*Repository)(nil)
)

// Repository maps pet profiles and the payment method onto documents.
type Repository struct {
	store docstore.Store
}

// NewRepository wires the repository over a document store.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// Add creates a pet document under the owner and assigns its ID.
func (r *Repository) Add(ctx context.Context, pet *domain.PetProfile) (*ownertypes.PetProjection, error) {
	if pet == nil {
		return nil, errors.New("pet is required")
	}
	collection := petsOf(pet.OwnerID)
	id, err := r.store.Add(ctx, collection, docstore.Fields{
		fieldName:  pet.Name,
		fieldBreed: pet.Breed,
	})
	if err != nil {
		return nil, translate(err)
	}
	doc, err := r.store.Get(ctx, docstore.Join(collection, id))
	if err != nil {
		return nil, translate(err)
	}
	return decodePet(pet.OwnerID, doc), nil
}

// ListByOwner returns an owner's pets, oldest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]*ownertypes.PetProjection, error) {
	snapshot, err := r.store.Query(ctx, docstore.NewQuery(petsOf(ownerID)))
	if err != nil {
		return nil, translate(err)
	}
	return decodePets(ownerID, snapshot.Documents), nil
}

// WatchByOwner streams an owner's pets.
func (r *Repository) WatchByOwner(ctx context.Context, ownerID string, listener ports.PetListListener) (ports.Subscription, error) {
	sub, err := r.store.SubscribeQuery(ctx, docstore.NewQuery(petsOf(ownerID)), func(snapshot docstore.Snapshot, err error) {
		if err != nil {
			listener(nil, translate(err))
			return
		}
		listener(decodePets(ownerID, snapshot.Documents), nil)
	})
	if err != nil {
		return nil, translate(err)
	}
	return sub, nil
}

// GetPaymentMethod reads the payment method from the user profile document.
func (r *Repository) GetPaymentMethod(ctx context.Context, ownerID string) (*domain.PaymentMethod, error) {
	doc, err := r.store.Get(ctx, profileOf(ownerID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	digits := doc.Fields.String(fieldPaymentMethod)
	if digits == "" {
		return nil, nil
	}
	return &domain.PaymentMethod{CardNumber: digits}, nil
}

// SavePaymentMethod merges the payment method onto the user profile, leaving other fields intact.
func (r *Repository) SavePaymentMethod(ctx context.Context, ownerID string, method *domain.PaymentMethod) error {
	if method == nil {
		return errors.New("payment method is required")
	}
	err := r.store.Set(ctx, profileOf(ownerID), docstore.Fields{fieldPaymentMethod: method.CardNumber}, docstore.Merge())
	return translate(err)
}

func profileOf(ownerID string) string {
	return docstore.Join(UsersCollection, strings.TrimSpace(ownerID))
}

func petsOf(ownerID string) string {
	return docstore.Join(UsersCollection, strings.TrimSpace(ownerID), PetsCollection)
}

func decodePet(ownerID string, doc *docstore.Document) *ownertypes.PetProjection {
	pet := &domain.PetProfile{
		ID:      doc.ID,
		OwnerID: ownerID,
		Name:    doc.Fields.String(fieldName),
		Breed:   doc.Fields.String(fieldBreed),
	}
	return projection.New(pet, doc.CreateTime, doc.UpdateTime)
}

func decodePets(ownerID string, docs []*docstore.Document) []*ownertypes.PetProjection {
	out := make([]*ownertypes.PetProjection, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodePet(ownerID, doc))
	}
	return out
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return ports.ErrNotFound
	case errors.Is(err, docstore.ErrInvalidPath):
		return fmt.Errorf("%w: %w", ports.ErrNotFound, err)
	case errors.Is(err, docstore.ErrUnavailable):
		return fmt.Errorf("%w: %w", ports.ErrUnavailable, err)
	default:
		return err
	}
}
