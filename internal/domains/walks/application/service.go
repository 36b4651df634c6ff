package application

import (
	"context"
	"strings"
	"time"

	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	"github.com/Apurer/dogwalk-api/internal/domains/walks/domain"
	"github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
	"github.com/Apurer/dogwalk-api/internal/shared/projection"
)

// Service orchestrates the walk lifecycle use cases.
type Service struct {
	repo        ports.Repository
	idempotency ports.IdempotencyStore
	endCodes    func() (string, error)
	zoneRadius  float64
	keyWait     time.Duration
}

const (
	defaultKeyWait  = 10 * time.Second
	keyPollInterval = 20 * time.Millisecond
)

// Option customizes the service.
type Option func(*Service)

// WithIdempotencyStore enables replay of walk requests that carry an idempotency key.
func WithIdempotencyStore(store ports.IdempotencyStore) Option {
	return func(s *Service) {
		s.idempotency = store
	}
}

// WithEndCodeGenerator replaces the random end code source.
func WithEndCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		if gen != nil {
			s.endCodes = gen
		}
	}
}

// WithKeyWait bounds how long a request waits for a concurrent request holding the same
// idempotency key before failing with ErrConflict.
func WithKeyWait(wait time.Duration) Option {
	return func(s *Service) {
		if wait > 0 {
			s.keyWait = wait
		}
	}
}

// WithZoneRadius sets the pickup zone radius in meters.
func WithZoneRadius(meters float64) Option {
	return func(s *Service) {
		if meters > 0 {
			s.zoneRadius = meters
		}
	}
}

// NewService wires the walks service with its dependencies.
func NewService(repo ports.Repository, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		endCodes:   domain.GenerateEndCode,
		zoneRadius: domain.DefaultZoneRadiusMeters,
		keyWait:    defaultKeyWait,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RequestWalk creates a REQUESTED walk for the calling owner.
func (s *Service) RequestWalk(ctx context.Context, input walktypes.RequestWalkInput) (*walktypes.WalkProjection, error) {
	if err := input.Caller.Require(auth.RoleOwner); err != nil {
		return nil, mapError(err)
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	if s.idempotency == nil || key == "" {
		return s.createWalk(ctx, input)
	}
	fingerprint, err := FingerprintRequestWalk(input)
	if err != nil {
		return nil, err
	}
	owner := input.Caller.UserID
	replayed, err := s.reserveKey(ctx, owner, key, fingerprint)
	if err != nil || replayed != nil {
		return replayed, err
	}

	created, err := s.createWalk(ctx, input)
	if err != nil {
		_ = s.idempotency.Release(ctx, owner, key)
		return nil, err
	}
	if err := s.idempotency.Complete(ctx, owner, key, created.Entity.ID); err != nil {
		return nil, mapError(err)
	}
	return created, nil
}

// reserveKey returns (nil, nil) once the caller holds the key. A completed key replays its
// walk; a key reserved by a concurrent request is polled until that request finishes.
func (s *Service) reserveKey(ctx context.Context, owner, key, fingerprint string) (*walktypes.WalkProjection, error) {
	deadline := time.Now().Add(s.keyWait)
	for {
		holder, err := s.idempotency.Reserve(ctx, ports.IdempotencyRecord{OwnerID: owner, Key: key, RequestHash: fingerprint})
		if err != nil {
			return nil, mapError(err)
		}
		if holder == nil {
			return nil, nil
		}
		if holder.RequestHash != fingerprint {
			return nil, mapError(ports.ErrIdempotencyConflict)
		}
		if !holder.Pending() {
			return s.replay(ctx, holder, fingerprint)
		}
		if time.Now().After(deadline) {
			return nil, mapError(ports.ErrIdempotencyInProgress)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(keyPollInterval):
		}
	}
}

func (s *Service) createWalk(ctx context.Context, input walktypes.RequestWalkInput) (*walktypes.WalkProjection, error) {
	code, err := s.endCodes()
	if err != nil {
		return nil, err
	}
	walk, err := domain.NewWalk(input.Caller.UserID, input.PetNames, domain.Location{
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
	}, code)
	if err != nil {
		return nil, mapError(err)
	}
	created, err := s.repo.Create(ctx, walk)
	if err != nil {
		return nil, mapError(err)
	}
	created.Entity.RecordRequested()
	return created, nil
}

// ClaimWalk assigns the calling walker to a REQUESTED walk. The check and the write are one
// transaction, so of two concurrent claims exactly one succeeds.
func (s *Service) ClaimWalk(ctx context.Context, input walktypes.WalkTransitionInput) (*walktypes.WalkProjection, error) {
	return s.transition(ctx, input.Caller, input.WalkID, func(w *domain.Walk) error {
		return w.Claim(input.Caller.UserID)
	})
}

// StartWalk moves the caller's ACCEPTED walk into progress.
func (s *Service) StartWalk(ctx context.Context, input walktypes.WalkTransitionInput) (*walktypes.WalkProjection, error) {
	return s.transition(ctx, input.Caller, input.WalkID, func(w *domain.Walk) error {
		return w.Start(input.Caller.UserID)
	})
}

// FinishWalk completes the caller's walk when the code matches; otherwise nothing is written.
func (s *Service) FinishWalk(ctx context.Context, input walktypes.FinishWalkInput) (*walktypes.WalkProjection, error) {
	return s.transition(ctx, input.Caller, input.WalkID, func(w *domain.Walk) error {
		return w.Finish(input.Caller.UserID, input.Code)
	})
}

// GetWalk loads one walk. Owners only see their own walks, with the end code; walkers see any walk without it.
func (s *Service) GetWalk(ctx context.Context, input walktypes.WalkIdentifier) (*walktypes.WalkProjection, error) {
	if err := input.Caller.Require(auth.RoleOwner, auth.RoleWalker); err != nil {
		return nil, mapError(err)
	}
	p, err := s.repo.GetByID(ctx, strings.TrimSpace(input.WalkID))
	if err != nil {
		return nil, mapError(err)
	}
	return viewFor(input.Caller, p)
}

// GetPickupView derives the walker-side pickup view of a walk.
func (s *Service) GetPickupView(ctx context.Context, input walktypes.WalkIdentifier) (*walktypes.PickupViewProjection, error) {
	if err := input.Caller.Require(auth.RoleWalker); err != nil {
		return nil, mapError(err)
	}
	p, err := s.repo.GetByID(ctx, strings.TrimSpace(input.WalkID))
	if err != nil {
		return nil, mapError(err)
	}
	return s.pickupView(p), nil
}

// ListAvailable returns the REQUESTED walks, oldest first.
func (s *Service) ListAvailable(ctx context.Context, caller auth.Caller) ([]*walktypes.WalkProjection, error) {
	if err := caller.Require(auth.RoleWalker); err != nil {
		return nil, mapError(err)
	}
	list, err := s.repo.ListByStatus(ctx, domain.StatusRequested)
	if err != nil {
		return nil, mapError(err)
	}
	return redactAll(list), nil
}

// GetActiveWalk returns the caller's most recent walk that has not completed, or nil.
func (s *Service) GetActiveWalk(ctx context.Context, caller auth.Caller) (*walktypes.WalkProjection, error) {
	if err := caller.Require(auth.RoleOwner); err != nil {
		return nil, mapError(err)
	}
	list, err := s.repo.ListByOwner(ctx, caller.UserID)
	if err != nil {
		return nil, mapError(err)
	}
	return selectActive(list), nil
}

// WatchAvailable streams the REQUESTED walks to a walker.
func (s *Service) WatchAvailable(ctx context.Context, caller auth.Caller, listener ports.WalkListListener) (ports.Subscription, error) {
	if err := caller.Require(auth.RoleWalker); err != nil {
		return nil, mapError(err)
	}
	sub, err := s.repo.WatchByStatus(ctx, domain.StatusRequested, func(list []*walktypes.WalkProjection, err error) {
		if err != nil {
			listener(nil, mapError(err))
			return
		}
		listener(redactAll(list), nil)
	})
	if err != nil {
		return nil, mapError(err)
	}
	return sub, nil
}

// WatchActiveWalk streams the owner's active walk, re-selected on every change; nil means none.
func (s *Service) WatchActiveWalk(ctx context.Context, caller auth.Caller, listener ports.WalkListener) (ports.Subscription, error) {
	if err := caller.Require(auth.RoleOwner); err != nil {
		return nil, mapError(err)
	}
	sub, err := s.repo.WatchByOwner(ctx, caller.UserID, func(list []*walktypes.WalkProjection, err error) {
		if err != nil {
			listener(nil, mapError(err))
			return
		}
		listener(selectActive(list), nil)
	})
	if err != nil {
		return nil, mapError(err)
	}
	return sub, nil
}

// WatchPickupView streams a freshly derived pickup view whenever the walk changes.
func (s *Service) WatchPickupView(ctx context.Context, input walktypes.WalkIdentifier, listener ports.PickupViewListener) (ports.Subscription, error) {
	if err := input.Caller.Require(auth.RoleWalker); err != nil {
		return nil, mapError(err)
	}
	sub, err := s.repo.WatchByID(ctx, strings.TrimSpace(input.WalkID), func(p *walktypes.WalkProjection, err error) {
		switch {
		case err != nil:
			listener(nil, mapError(err))
		case p == nil:
			listener(nil, ports.ErrNotFound)
		default:
			listener(s.pickupView(p), nil)
		}
	})
	if err != nil {
		return nil, mapError(err)
	}
	return sub, nil
}

func (s *Service) transition(ctx context.Context, caller auth.Caller, walkID string, mutate ports.MutateFunc) (*walktypes.WalkProjection, error) {
	if err := caller.Require(auth.RoleWalker); err != nil {
		return nil, mapError(err)
	}
	updated, err := s.repo.Update(ctx, strings.TrimSpace(walkID), mutate)
	if err != nil {
		return nil, mapError(err)
	}
	return redact(updated), nil
}

func (s *Service) replay(ctx context.Context, record *ports.IdempotencyRecord, fingerprint string) (*walktypes.WalkProjection, error) {
	if record.RequestHash != fingerprint {
		return nil, mapError(ports.ErrIdempotencyConflict)
	}
	p, err := s.repo.GetByID(ctx, record.WalkID)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (s *Service) pickupView(p *walktypes.WalkProjection) *walktypes.PickupViewProjection {
	view := domain.NewPickupView(p.Entity, s.zoneRadius)
	return projection.New(&view, p.Metadata.CreatedAt, p.Metadata.UpdatedAt)
}

func viewFor(caller auth.Caller, p *walktypes.WalkProjection) (*walktypes.WalkProjection, error) {
	switch caller.Role {
	case auth.RoleOwner:
		if p.Entity.OwnerID != caller.UserID {
			return nil, mapError(auth.ErrForbidden)
		}
		return p, nil
	default:
		return redact(p), nil
	}
}

func selectActive(list []*walktypes.WalkProjection) *walktypes.WalkProjection {
	walks := make([]*domain.Walk, len(list))
	for i, p := range list {
		walks[i] = p.Entity
	}
	active := domain.SelectActive(walks)
	for _, p := range list {
		if p.Entity == active {
			return p
		}
	}
	return nil
}

func redact(p *walktypes.WalkProjection) *walktypes.WalkProjection {
	if p == nil {
		return nil
	}
	return projection.New(p.Entity.Redacted(), p.Metadata.CreatedAt, p.Metadata.UpdatedAt)
}

func redactAll(list []*walktypes.WalkProjection) []*walktypes.WalkProjection {
	out := make([]*walktypes.WalkProjection, 0, len(list))
	for _, p := range list {
		out = append(out, redact(p))
	}
	return out
}

var _ ports.Service = (*Service)(nil)
