package walks

import (
	"go.temporal.io/sdk/workflow"

	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	"github.com/Apurer/dogwalk-api/internal/platform/temporal/sequences"
)

const (
	// WalkRequestWorkflowName is the public identifier for registering the workflow.
	WalkRequestWorkflowName = "walks.workflows.Request"
	// WalkRequestTaskQueue is the queue consumed by the worker processing walk requests.
	WalkRequestTaskQueue = "WALK_REQUESTS"
)

// WalkRequestWorkflowInput captures the payload required to create a walk.
type WalkRequestWorkflowInput struct {
	Command walktypes.RequestWalkInput
	TraceID string
}

// WalkRequestWorkflow orchestrates the activities that create a requested walk.
func WalkRequestWorkflow(ctx workflow.Context, input WalkRequestWorkflowInput) (*walktypes.WalkProjection, error) {
	logger := workflow.GetLogger(ctx)
	ownerID := input.Command.Caller.UserID
	logger.Info("WalkRequestWorkflow started", withTraceID(input.TraceID, "ownerId", ownerID)...)
	projection, err := sequences.RunWalkRequestSequence(ctx, input.Command)
	if err != nil {
		logger.Error("WalkRequestWorkflow failed", withTraceID(input.TraceID, "ownerId", ownerID, "error", err)...)
		return nil, err
	}
	if projection != nil && projection.Entity != nil {
		logger.Info("WalkRequestWorkflow completed", withTraceID(input.TraceID, "walkId", projection.Entity.ID)...)
	} else {
		logger.Info("WalkRequestWorkflow completed", withTraceID(input.TraceID)...)
	}
	return projection, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
