package mapper

import (
	"time"

	ownertypes "github.com/Apurer/dogwalk-api/internal/domains/owners/application/types"
	"github.com/Apurer/dogwalk-api/internal/domains/owners/domain"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

// Pet is the HTTP representation of a pet profile.
type Pet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Breed     string    `json:"breed"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// AddPet is the inbound payload for POST /v1/owner/pets.
type AddPet struct {
	Name  string `json:"name"`
	Breed string `json:"breed"`
}

// PaymentMethod is the owner's stored card. CardNumber is empty when none is configured.
type PaymentMethod struct {
	Configured bool   `json:"configured"`
	CardNumber string `json:"cardNumber,omitempty"`
	Last4      string `json:"last4,omitempty"`
}

// SavePaymentMethod is the inbound payload for PUT /v1/owner/payment-method.
type SavePaymentMethod struct {
	CardNumber string `json:"cardNumber"`
}

// ToAddPetInput builds the application input.
func ToAddPetInput(caller auth.Caller, payload AddPet) ownertypes.AddPetInput {
	return ownertypes.AddPetInput{Caller: caller, Name: payload.Name, Breed: payload.Breed}
}

// ToSavePaymentMethodInput builds the application input.
func ToSavePaymentMethodInput(caller auth.Caller, payload SavePaymentMethod) ownertypes.SavePaymentMethodInput {
	return ownertypes.SavePaymentMethodInput{Caller: caller, CardNumber: payload.CardNumber}
}

// FromPets maps pet projections, always returning a non-nil slice.
func FromPets(items []*ownertypes.PetProjection) []Pet {
	out := make([]Pet, 0, len(items))
	for _, item := range items {
		if item == nil || item.Entity == nil {
			continue
		}
		out = append(out, FromPet(item))
	}
	return out
}

// FromPet maps one pet projection.
func FromPet(p *ownertypes.PetProjection) Pet {
	return Pet{
		ID:        p.Entity.ID,
		Name:      p.Entity.Name,
		Breed:     p.Entity.Breed,
		CreatedAt: p.Metadata.CreatedAt,
	}
}

// FromPaymentMethod maps the stored card; nil maps to an unconfigured method.
func FromPaymentMethod(method *domain.PaymentMethod) PaymentMethod {
	if method == nil {
		return PaymentMethod{}
	}
	return PaymentMethod{Configured: true, CardNumber: method.CardNumber, Last4: method.Last4()}
}
