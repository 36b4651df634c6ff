package application

import (
	"context"
	"sync"

	ownertypes "github.com/Apurer/dogwalk-api/internal/domains/owners/application/types"
	"github.com/Apurer/dogwalk-api/internal/domains/owners/domain"
	"github.com/Apurer/dogwalk-api/internal/domains/owners/ports"
	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	walkports "github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
	"github.com/Apurer/dogwalk-api/internal/shared/live"
)

// WalkRequester creates walks. Both the walks service and the workflow orchestrators satisfy it.
type WalkRequester interface {
	RequestWalk(ctx context.Context, input walktypes.RequestWalkInput) (*walktypes.WalkProjection, error)
}

// SessionOption customizes an owner session.
type SessionOption func(*Session)

// WithWalkRequester routes walk requests through requester instead of the walks service.
func WithWalkRequester(requester WalkRequester) SessionOption {
	return func(s *Session) {
		if requester != nil {
			s.requester = requester
		}
	}
}

// Session is the owner-side view of the marketplace for one signed-in owner. It keeps the
// owner's active walk and pets live, and caches the payment method read at start.
// Close releases every subscription.
type Session struct {
	caller    auth.Caller
	walks     walkports.Service
	requester WalkRequester
	owners    ports.Service

	activeWalk    *live.Value[*walktypes.WalkProjection]
	pets          *live.Value[[]*ownertypes.PetProjection]
	paymentMethod *live.Value[*domain.PaymentMethod]
	lastError     *live.Value[error]

	mu     sync.Mutex
	subs   []subscription
	closed bool
}

type subscription interface {
	Unsubscribe()
}

// StartSession opens an owner session. The payment method is read once here; the active walk
// and the pets stay subscribed until Close or until ctx is cancelled.
func StartSession(ctx context.Context, caller auth.Caller, walks walkports.Service, owners ports.Service, opts ...SessionOption) (*Session, error) {
	if err := caller.Require(auth.RoleOwner); err != nil {
		return nil, err
	}
	s := &Session{
		caller:        caller,
		walks:         walks,
		requester:     walks,
		owners:        owners,
		activeWalk:    live.NewValue[*walktypes.WalkProjection](nil),
		pets:          live.NewValue[[]*ownertypes.PetProjection](nil),
		paymentMethod: live.NewValue[*domain.PaymentMethod](nil),
		lastError:     live.NewValue[error](nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	method, err := owners.GetPaymentMethod(ctx, caller)
	if err != nil {
		return nil, err
	}
	s.paymentMethod.Set(method)

	activeSub, err := walks.WatchActiveWalk(ctx, caller, func(p *walktypes.WalkProjection, err error) {
		if err != nil {
			s.lastError.Set(err)
			return
		}
		s.activeWalk.Set(p)
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.track(activeSub)

	petsSub, err := owners.WatchPets(ctx, caller, func(pets []*ownertypes.PetProjection, err error) {
		if err != nil {
			s.lastError.Set(err)
			return
		}
		s.pets.Set(pets)
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.track(petsSub)
	return s, nil
}

// Caller returns the owner the session belongs to.
func (s *Session) Caller() auth.Caller {
	return s.caller
}

// ActiveWalk is the owner's most recent walk that has not completed; nil means none.
func (s *Session) ActiveWalk() *live.Value[*walktypes.WalkProjection] {
	return s.activeWalk
}

// Pets is the owner's pets, oldest first.
func (s *Session) Pets() *live.Value[[]*ownertypes.PetProjection] {
	return s.pets
}

// PaymentMethod is the card read at session start, replaced after every successful save.
func (s *Session) PaymentMethod() *live.Value[*domain.PaymentMethod] {
	return s.paymentMethod
}

// LastError holds the most recent failure reported by a subscription.
func (s *Session) LastError() *live.Value[error] {
	return s.lastError
}

// RequestWalk asks for a walk for the named pets at the pickup point.
func (s *Session) RequestWalk(ctx context.Context, petNames []string, latitude, longitude float64, idempotencyKey string) (*walktypes.WalkProjection, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	return s.requester.RequestWalk(ctx, walktypes.RequestWalkInput{
		Caller:         s.caller,
		PetNames:       petNames,
		Latitude:       latitude,
		Longitude:      longitude,
		IdempotencyKey: idempotencyKey,
	})
}

// SavePaymentMethod stores the card digits and updates the cached value on success.
func (s *Session) SavePaymentMethod(ctx context.Context, digits string) (*domain.PaymentMethod, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	method, err := s.owners.SavePaymentMethod(ctx, ownertypes.SavePaymentMethodInput{Caller: s.caller, CardNumber: digits})
	if err != nil {
		return nil, err
	}
	s.paymentMethod.Set(method)
	return method, nil
}

// AddPet creates a pet profile; the pets value picks it up from the subscription.
func (s *Session) AddPet(ctx context.Context, name, breed string) (*ownertypes.PetProjection, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	return s.owners.AddPet(ctx, ownertypes.AddPetInput{Caller: s.caller, Name: name, Breed: breed})
}

// Close releases every subscription and ends every watch on the session's values. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	s.activeWalk.Close()
	s.pets.Close()
	s.paymentMethod.Close()
	s.lastError.Close()
}

func (s *Session) track(sub subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
