package walkserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/dogwalk-api/internal/shared/auth"
	apierrors "github.com/Apurer/dogwalk-api/internal/shared/errors"
)

// SignOuter revokes a caller's sessions.
type SignOuter interface {
	SignOut(ctx context.Context, caller auth.Caller) error
}

// SessionAPI serves sign-out.
type SessionAPI struct {
	identity  SignOuter
	responder *apierrors.Responder
}

// NewSessionAPI creates a SessionAPI.
func NewSessionAPI(identity SignOuter, responder *apierrors.Responder) SessionAPI {
	return SessionAPI{identity: identity, responder: responder}
}

// Post /v1/session/sign-out
// Revokes every token of the caller
func (api *SessionAPI) SignOut(c *gin.Context) {
	if err := api.identity.SignOut(c.Request.Context(), callerFrom(c)); err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
