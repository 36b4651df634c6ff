package walkserver

import (
	"errors"

	"github.com/gin-gonic/gin"

	identityapp "github.com/Apurer/dogwalk-api/internal/domains/identity/application"
	ownerapp "github.com/Apurer/dogwalk-api/internal/domains/owners/application"
	ownerports "github.com/Apurer/dogwalk-api/internal/domains/owners/ports"
	walkapp "github.com/Apurer/dogwalk-api/internal/domains/walks/application"
	walkdomain "github.com/Apurer/dogwalk-api/internal/domains/walks/domain"
	walkports "github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/platform/docstore"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
	apierrors "github.com/Apurer/dogwalk-api/internal/shared/errors"
)

// NewResponder builds the problem responder with every bounded context's error mapping.
func NewResponder(baseURI string) *apierrors.Responder {
	responder := apierrors.NewResponder(baseURI, mapAuthError, mapWalkError, mapOwnerError, mapStoreError)
	responder.RequestIDHeader = HeaderRequestID
	return responder
}

func mapAuthError(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return apierrors.ErrNotAuthenticated, true
	case errors.Is(err, auth.ErrForbidden):
		return apierrors.ErrForbidden, true
	case errors.Is(err, identityapp.ErrInvalidInput):
		return apierrors.ErrValidation, true
	}
	return apierrors.ProblemDetail{}, false
}

func mapWalkError(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, walkapp.ErrForbidden):
		return apierrors.ErrForbidden, true
	case errors.Is(err, walkports.ErrNotFound):
		return apierrors.ErrNotFound, true
	case errors.Is(err, walkdomain.ErrCodeMismatch):
		return apierrors.ErrCodeMismatch, true
	case errors.Is(err, walkapp.ErrInvalidInput):
		return apierrors.ErrValidation, true
	case errors.Is(err, walkdomain.ErrInvalidTransition):
		return apierrors.ErrInvalidTransition, true
	case errors.Is(err, walkapp.ErrConflict):
		return apierrors.ErrConflict, true
	case errors.Is(err, walkports.ErrUnavailable):
		return apierrors.ErrStoreUnavailable, true
	}
	return apierrors.ProblemDetail{}, false
}

func mapOwnerError(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, ownerapp.ErrInvalidInput):
		return apierrors.ErrValidation, true
	case errors.Is(err, ownerports.ErrNotFound):
		return apierrors.ErrNotFound, true
	case errors.Is(err, ownerports.ErrUnavailable):
		return apierrors.ErrStoreUnavailable, true
	}
	return apierrors.ProblemDetail{}, false
}

func mapStoreError(err error) (apierrors.ProblemDetail, bool) {
	if errors.Is(err, docstore.ErrUnavailable) {
		return apierrors.ErrStoreUnavailable, true
	}
	return apierrors.ProblemDetail{}, false
}

// respondBadRequest reports a malformed request body or parameter.
func respondBadRequest(c *gin.Context, responder *apierrors.Responder, err error) {
	responder.Respond(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
}
