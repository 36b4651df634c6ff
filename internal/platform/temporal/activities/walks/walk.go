package walks

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	walkapp "github.com/Apurer/dogwalk-api/internal/domains/walks/application"
	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	walkports "github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

// RequestWalkActivityName creates the walk document for a request.
const RequestWalkActivityName = "walks.activities.RequestWalk"

// Activities groups activities that operate on the walks bounded context.
type Activities struct {
	service walkports.Service
}

// NewActivities wires the walks service into the Temporal activities bundle.
func NewActivities(service walkports.Service) *Activities {
	return &Activities{service: service}
}

// RequestWalk creates a walk and returns its projection. Validation and authorization failures
// are not retried.
func (a *Activities) RequestWalk(ctx context.Context, input walktypes.RequestWalkInput) (*walktypes.WalkProjection, error) {
	logger := activity.GetLogger(ctx)
	ownerID := input.Caller.UserID
	if a == nil || a.service == nil {
		logger.Error("walk request activity not initialized", "ownerId", ownerID)
		return nil, errors.New("walk request activity not initialized")
	}
	logger.Info("RequestWalk activity started", "ownerId", ownerID, "pets", len(input.PetNames))
	projection, err := a.service.RequestWalk(ctx, input)
	if err != nil {
		logger.Error("RequestWalk activity failed", "ownerId", ownerID, "error", err)
		if permanent(err) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), errorType(err), err)
		}
		return nil, err
	}
	if projection != nil && projection.Entity != nil {
		logger.Info("RequestWalk activity completed", "walkId", projection.Entity.ID)
	}
	return projection, nil
}

// Error types carried by non-retryable activity failures so callers can restore the cause.
const (
	ErrorTypeInvalidInput     = "walks.InvalidInput"
	ErrorTypeConflict         = "walks.Conflict"
	ErrorTypeForbidden        = "walks.Forbidden"
	ErrorTypeNotAuthenticated = "walks.NotAuthenticated"
)

func permanent(err error) bool {
	return errorType(err) != ""
}

func errorType(err error) string {
	switch {
	case errors.Is(err, walkapp.ErrInvalidInput):
		return ErrorTypeInvalidInput
	case errors.Is(err, walkapp.ErrConflict):
		return ErrorTypeConflict
	case errors.Is(err, walkapp.ErrForbidden):
		return ErrorTypeForbidden
	case errors.Is(err, auth.ErrNotAuthenticated):
		return ErrorTypeNotAuthenticated
	default:
		return ""
	}
}
