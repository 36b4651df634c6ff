package ports

import (
	"context"

	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

// PickupViewListener receives a freshly derived pickup view on every change of the watched walk.
type PickupViewListener func(view *walktypes.PickupViewProjection, err error)

// Service defines the walk use cases exposed to adapters (inbound/driving port).
type Service interface {
	RequestWalk(ctx context.Context, input walktypes.RequestWalkInput) (*walktypes.WalkProjection, error)
	ClaimWalk(ctx context.Context, input walktypes.WalkTransitionInput) (*walktypes.WalkProjection, error)
	StartWalk(ctx context.Context, input walktypes.WalkTransitionInput) (*walktypes.WalkProjection, error)
	FinishWalk(ctx context.Context, input walktypes.FinishWalkInput) (*walktypes.WalkProjection, error)
	GetWalk(ctx context.Context, input walktypes.WalkIdentifier) (*walktypes.WalkProjection, error)
	GetPickupView(ctx context.Context, input walktypes.WalkIdentifier) (*walktypes.PickupViewProjection, error)
	ListAvailable(ctx context.Context, caller auth.Caller) ([]*walktypes.WalkProjection, error)
	GetActiveWalk(ctx context.Context, caller auth.Caller) (*walktypes.WalkProjection, error)
	WatchAvailable(ctx context.Context, caller auth.Caller, listener WalkListListener) (Subscription, error)
	WatchActiveWalk(ctx context.Context, caller auth.Caller, listener WalkListener) (Subscription, error)
	WatchPickupView(ctx context.Context, input walktypes.WalkIdentifier, listener PickupViewListener) (Subscription, error)
}
