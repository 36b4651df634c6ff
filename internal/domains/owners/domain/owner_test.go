package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPetProfile(t *testing.T) {
	pet, err := NewPetProfile(" owner-1 ", "  Rex ", "Beagle ")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", pet.OwnerID)
	assert.Equal(t, "Rex", pet.Name)
	assert.Equal(t, "Beagle", pet.Breed)
	assert.Empty(t, pet.ID)

	_, err = NewPetProfile("", "Rex", "Beagle")
	require.ErrorIs(t, err, ErrOwnerRequired)
	_, err = NewPetProfile("owner-1", " ", "Beagle")
	require.ErrorIs(t, err, ErrNameRequired)
	_, err = NewPetProfile("owner-1", "Rex", "")
	require.ErrorIs(t, err, ErrBreedRequired)
}

func TestNewPaymentMethod(t *testing.T) {
	method, err := NewPaymentMethod("1234567890123456")
	require.NoError(t, err)
	assert.Equal(t, "1234567890123456", method.CardNumber)
	assert.Equal(t, "3456", method.Last4())

	for _, digits := range []string{"123", "", "12345678901234567", "1234 5678 9012 3", "123456789012345a", "１２３４５６７８９０１２３４５６"} {
		_, err := NewPaymentMethod(digits)
		assert.ErrorIs(t, err, ErrInvalidCardNumber, digits)
	}

	var none *PaymentMethod
	assert.Empty(t, none.Last4())
}
