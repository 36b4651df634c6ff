package mapper

import (
	"errors"
	"time"

	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	"github.com/Apurer/dogwalk-api/internal/domains/walks/domain"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

var (
	errMissingLatitude  = errors.New("latitude is required")
	errMissingLongitude = errors.New("longitude is required")
	errMissingPetNames  = errors.New("petNames is required")
	errMissingCode      = errors.New("code is required")
)

// Location is the HTTP representation of a pickup point.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Walk is the HTTP representation of a walk. EndCode is only populated for the owner.
type Walk struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	WalkerID  string    `json:"walkerId,omitempty"`
	PetNames  []string  `json:"petNames"`
	Status    string    `json:"status"`
	EndCode   string    `json:"endCode,omitempty"`
	TotalCost float64   `json:"totalCost"`
	Pickup    Location  `json:"pickup"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Zone is the pickup circle drawn on the walker's map.
type Zone struct {
	Center       Location `json:"center"`
	RadiusMeters float64  `json:"radiusMeters"`
}

// Camera is the map focus.
type Camera struct {
	Target Location `json:"target"`
	Zoom   float64  `json:"zoom"`
}

// PickupView is the walker's live view of one walk.
type PickupView struct {
	Walk      Walk   `json:"walk"`
	Camera    Camera `json:"camera"`
	Zone      *Zone  `json:"zone,omitempty"`
	CanStart  bool   `json:"canStart"`
	CanFinish bool   `json:"canFinish"`
}

// RequestWalk captures the inbound payload for POST /v1/walks while preserving field presence.
type RequestWalk struct {
	PetNames  *[]string `json:"petNames"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
}

// FinishWalk carries the code the owner hands to the walker.
type FinishWalk struct {
	Code *string `json:"code"`
}

// ToRequestWalkInput validates presence and builds the application input.
func ToRequestWalkInput(caller auth.Caller, payload RequestWalk, idempotencyKey string) (walktypes.RequestWalkInput, error) {
	if payload.PetNames == nil {
		return walktypes.RequestWalkInput{}, errMissingPetNames
	}
	if payload.Latitude == nil {
		return walktypes.RequestWalkInput{}, errMissingLatitude
	}
	if payload.Longitude == nil {
		return walktypes.RequestWalkInput{}, errMissingLongitude
	}
	return walktypes.RequestWalkInput{
		Caller:         caller,
		PetNames:       append([]string(nil), (*payload.PetNames)...),
		Latitude:       *payload.Latitude,
		Longitude:      *payload.Longitude,
		IdempotencyKey: idempotencyKey,
	}, nil
}

// ToFinishWalkInput validates presence and builds the application input.
func ToFinishWalkInput(caller auth.Caller, walkID string, payload FinishWalk) (walktypes.FinishWalkInput, error) {
	if payload.Code == nil {
		return walktypes.FinishWalkInput{}, errMissingCode
	}
	return walktypes.FinishWalkInput{Caller: caller, WalkID: walkID, Code: *payload.Code}, nil
}

// FromDomainWalk maps a domain walk into its HTTP representation.
func FromDomainWalk(w *domain.Walk) Walk {
	if w == nil {
		return Walk{}
	}
	return Walk{
		ID:        w.ID,
		OwnerID:   w.OwnerID,
		WalkerID:  w.WalkerID,
		PetNames:  append([]string{}, w.PetNames...),
		Status:    string(w.Status),
		EndCode:   w.EndCode,
		TotalCost: w.TotalCost,
		Pickup:    fromLocation(w.Pickup),
	}
}

// FromProjection maps a walk projection, including timestamps. A nil projection maps to nil.
func FromProjection(p *walktypes.WalkProjection) *Walk {
	if p == nil || p.Entity == nil {
		return nil
	}
	out := FromDomainWalk(p.Entity)
	out.CreatedAt = p.Metadata.CreatedAt
	out.UpdatedAt = p.Metadata.UpdatedAt
	return &out
}

// FromProjections maps a list of walk projections, always returning a non-nil slice.
func FromProjections(items []*walktypes.WalkProjection) []Walk {
	out := make([]Walk, 0, len(items))
	for _, item := range items {
		if mapped := FromProjection(item); mapped != nil {
			out = append(out, *mapped)
		}
	}
	return out
}

// FromPickupView maps a pickup view projection.
func FromPickupView(p *walktypes.PickupViewProjection) *PickupView {
	if p == nil || p.Entity == nil {
		return nil
	}
	view := p.Entity
	walk := FromDomainWalk(view.Walk)
	walk.EndCode = ""
	walk.CreatedAt = p.Metadata.CreatedAt
	walk.UpdatedAt = p.Metadata.UpdatedAt
	out := &PickupView{
		Walk:      walk,
		Camera:    Camera{Target: fromLocation(view.Camera.Target), Zoom: view.Camera.Zoom},
		CanStart:  view.CanStart,
		CanFinish: view.CanFinish,
	}
	if view.Zone != nil {
		out.Zone = &Zone{Center: fromLocation(view.Zone.Center), RadiusMeters: view.Zone.RadiusMeters}
	}
	return out
}

func fromLocation(l domain.Location) Location {
	return Location{Latitude: l.Latitude, Longitude: l.Longitude}
}
