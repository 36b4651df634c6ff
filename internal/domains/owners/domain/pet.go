package domain

import (
	"errors"
	"strings"
)

var (
	ErrOwnerRequired = errors.New("owner is required")
	ErrNameRequired  = errors.New("pet name is required")
	ErrBreedRequired = errors.New("pet breed is required")
)

// PetProfile is one of an owner's pets. Profiles are created once and never edited.
type PetProfile struct {
	ID      string
	OwnerID string
	Name    string
	Breed   string
}

// NewPetProfile validates and trims a new profile. The ID is assigned on save.
func NewPetProfile(ownerID, name, breed string) (*PetProfile, error) {
	ownerID = strings.TrimSpace(ownerID)
	name = strings.TrimSpace(name)
	breed = strings.TrimSpace(breed)
	switch {
	case ownerID == "":
		return nil, ErrOwnerRequired
	case name == "":
		return nil, ErrNameRequired
	case breed == "":
		return nil, ErrBreedRequired
	}
	return &PetProfile{OwnerID: ownerID, Name: name, Breed: breed}, nil
}
