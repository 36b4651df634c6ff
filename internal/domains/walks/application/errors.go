package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/dogwalk-api/internal/domains/walks/domain"
	"github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant or the end code did not match.
	ErrInvalidInput = errors.New("invalid walk input")
	// ErrConflict signals the walk is not in a state that allows the operation.
	ErrConflict = errors.New("walk state conflict")
	// ErrForbidden signals the caller may not act on the walk.
	ErrForbidden = errors.New("walk operation not permitted")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrConflict) || errors.Is(err, ErrForbidden) {
		return err
	}
	switch {
	case errors.Is(err, domain.ErrOwnerRequired),
		errors.Is(err, domain.ErrWalkerRequired),
		errors.Is(err, domain.ErrNoPets),
		errors.Is(err, domain.ErrBlankPetName),
		errors.Is(err, domain.ErrInvalidLocation),
		errors.Is(err, domain.ErrInvalidEndCode),
		errors.Is(err, domain.ErrCodeMismatch):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, ports.ErrIdempotencyConflict),
		errors.Is(err, ports.ErrIdempotencyInProgress):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, domain.ErrNotAssignedWalker),
		errors.Is(err, auth.ErrForbidden):
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	return err
}
