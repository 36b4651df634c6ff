package types

import (
	"github.com/Apurer/dogwalk-api/internal/domains/walks/domain"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
	"github.com/Apurer/dogwalk-api/internal/shared/projection"
)

// WalkProjection is a walk plus its store timestamps.
type WalkProjection = projection.Projection[*domain.Walk]

// PickupViewProjection is the derived walker view plus the timestamps of the walk it came from.
type PickupViewProjection = projection.Projection[*domain.PickupView]

// RequestWalkInput carries an owner's walk request.
type RequestWalkInput struct {
	Caller         auth.Caller
	PetNames       []string
	Latitude       float64
	Longitude      float64
	IdempotencyKey string
}

// WalkIdentifier addresses one walk on behalf of a caller.
type WalkIdentifier struct {
	Caller auth.Caller
	WalkID string
}

// WalkTransitionInput addresses a walk for Claim and Start.
type WalkTransitionInput = WalkIdentifier

// FinishWalkInput carries the code the owner gave the walker.
type FinishWalkInput struct {
	Caller auth.Caller
	WalkID string
	Code   string
}
