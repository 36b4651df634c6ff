package ports

import (
	"context"

	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
)

// WorkflowOrchestrator exposes durable workflow operations required by the walks bounded context.
type WorkflowOrchestrator interface {
	RequestWalk(ctx context.Context, input walktypes.RequestWalkInput) (*walktypes.WalkProjection, error)
}
