package application

import (
	"context"

	ownertypes "github.com/Apurer/dogwalk-api/internal/domains/owners/application/types"
	"github.com/Apurer/dogwalk-api/internal/domains/owners/domain"
	"github.com/Apurer/dogwalk-api/internal/domains/owners/ports"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

// Service orchestrates the owner profile use cases.
type Service struct {
	pets     ports.PetRepository
	profiles ports.ProfileRepository
}

// NewService wires the owners service with its repositories.
func NewService(pets ports.PetRepository, profiles ports.ProfileRepository) *Service {
	return &Service{pets: pets, profiles: profiles}
}

// AddPet creates a pet profile for the calling owner.
func (s *Service) AddPet(ctx context.Context, input ownertypes.AddPetInput) (*ownertypes.PetProjection, error) {
	if err := input.Caller.Require(auth.RoleOwner); err != nil {
		return nil, err
	}
	pet, err := domain.NewPetProfile(input.Caller.UserID, input.Name, input.Breed)
	if err != nil {
		return nil, mapError(err)
	}
	created, err := s.pets.Add(ctx, pet)
	if err != nil {
		return nil, mapError(err)
	}
	return created, nil
}

// ListPets returns the caller's pets, oldest first.
func (s *Service) ListPets(ctx context.Context, caller auth.Caller) ([]*ownertypes.PetProjection, error) {
	if err := caller.Require(auth.RoleOwner); err != nil {
		return nil, err
	}
	pets, err := s.pets.ListByOwner(ctx, caller.UserID)
	if err != nil {
		return nil, mapError(err)
	}
	return pets, nil
}

// WatchPets streams the caller's pets.
func (s *Service) WatchPets(ctx context.Context, caller auth.Caller, listener ports.PetListListener) (ports.Subscription, error) {
	if err := caller.Require(auth.RoleOwner); err != nil {
		return nil, err
	}
	sub, err := s.pets.WatchByOwner(ctx, caller.UserID, listener)
	if err != nil {
		return nil, mapError(err)
	}
	return sub, nil
}

// GetPaymentMethod returns the caller's payment method, or nil when none is configured.
func (s *Service) GetPaymentMethod(ctx context.Context, caller auth.Caller) (*domain.PaymentMethod, error) {
	if err := caller.Require(auth.RoleOwner); err != nil {
		return nil, err
	}
	method, err := s.profiles.GetPaymentMethod(ctx, caller.UserID)
	if err != nil {
		return nil, mapError(err)
	}
	return method, nil
}

// SavePaymentMethod validates the digits before writing them onto the caller's profile.
func (s *Service) SavePaymentMethod(ctx context.Context, input ownertypes.SavePaymentMethodInput) (*domain.PaymentMethod, error) {
	if err := input.Caller.Require(auth.RoleOwner); err != nil {
		return nil, err
	}
	method, err := domain.NewPaymentMethod(input.CardNumber)
	if err != nil {
		return nil, mapError(err)
	}
	if err := s.profiles.SavePaymentMethod(ctx, input.Caller.UserID, method); err != nil {
		return nil, mapError(err)
	}
	return method, nil
}

var _ ports.Service = (*Service)(nil)
