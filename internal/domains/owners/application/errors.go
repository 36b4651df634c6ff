package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/dogwalk-api/internal/domains/owners/domain"
)

var (
	// ErrInvalidInput signals a pet profile or payment method failed validation; nothing was written.
	ErrInvalidInput = errors.New("invalid owner input")
	// ErrSessionClosed is returned by session actions after Close.
	ErrSessionClosed = errors.New("owner session closed")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidInput) {
		return err
	}
	switch {
	case errors.Is(err, domain.ErrOwnerRequired),
		errors.Is(err, domain.ErrNameRequired),
		errors.Is(err, domain.ErrBreedRequired),
		errors.Is(err, domain.ErrInvalidCardNumber):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
