package types

import (
	"github.com/Apurer/dogwalk-api/internal/domains/owners/domain"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
	"github.com/Apurer/dogwalk-api/internal/shared/projection"
)

// PetProjection is a pet profile plus its store timestamps.
type PetProjection = projection.Projection[*domain.PetProfile]

// AddPetInput carries a new pet profile for the calling owner.
type AddPetInput struct {
	Caller auth.Caller
	Name   string
	Breed  string
}

// SavePaymentMethodInput carries the card digits for the calling owner.
type SavePaymentMethodInput struct {
	Caller     auth.Caller
	CardNumber string
}
