package walkserver

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Apurer/dogwalk-api/internal/shared/auth"
	apierrors "github.com/Apurer/dogwalk-api/internal/shared/errors"
)

const (
	// HeaderRequestID carries the request correlation ID.
	HeaderRequestID = "X-Request-ID"
	// HeaderIdempotencyKey makes POST /v1/walks replayable.
	HeaderIdempotencyKey = "Idempotency-Key"

	callerKey = "walkserver.caller"
	// accessTokenParam lets WebSocket clients that cannot set headers authenticate.
	accessTokenParam = "access_token"
)

// Authenticator resolves a bearer token into a caller.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (auth.Caller, error)
}

// RequestID echoes the inbound X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// Authenticate rejects requests without a valid bearer token and stores the caller on the context.
func Authenticate(authn Authenticator, responder *apierrors.Responder, allowQueryToken bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := c.GetHeader("Authorization")
		if strings.TrimSpace(bearer) == "" && allowQueryToken {
			bearer = c.Query(accessTokenParam)
		}
		if strings.TrimSpace(bearer) == "" {
			responder.RespondError(c, auth.ErrNotAuthenticated)
			return
		}
		caller, err := authn.Authenticate(c.Request.Context(), bearer)
		if err != nil {
			responder.RespondError(c, err)
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

// callerFrom returns the caller stored by Authenticate; the zero caller fails every role check.
func callerFrom(c *gin.Context) auth.Caller {
	if value, ok := c.Get(callerKey); ok {
		if caller, ok := value.(auth.Caller); ok {
			return caller
		}
	}
	return auth.Caller{}
}
