package sequences

import (
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	walkactivities "github.com/Apurer/dogwalk-api/internal/platform/temporal/activities/walks"
)

// RequestWalkActivityOptions bounds each RequestWalk attempt. Validation, conflict and
// authorization failures are never retried.
var RequestWalkActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    2 * time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    10 * time.Second,
		MaximumAttempts:    5,
		NonRetryableErrorTypes: []string{
			walkactivities.ErrorTypeInvalidInput,
			walkactivities.ErrorTypeConflict,
			walkactivities.ErrorTypeForbidden,
			walkactivities.ErrorTypeNotAuthenticated,
		},
	},
}

// RunWalkRequestSequence stores the requested walk through the RequestWalk activity.
func RunWalkRequestSequence(ctx workflow.Context, input walktypes.RequestWalkInput) (*walktypes.WalkProjection, error) {
	logger := log.With(workflow.GetLogger(ctx), "ownerId", input.Caller.UserID)
	ctx = workflow.WithActivityOptions(ctx, RequestWalkActivityOptions)

	var result walktypes.WalkProjection
	if err := workflow.ExecuteActivity(ctx, walkactivities.RequestWalkActivityName, input).Get(ctx, &result); err != nil {
		logger.Warn("walk request activity gave up", "error", err)
		return nil, err
	}
	if result.Entity == nil {
		logger.Warn("walk request activity returned no walk")
		return &result, nil
	}
	logger.Debug("walk stored", "walkId", result.Entity.ID, "status", string(result.Entity.Status))
	return &result, nil
}
