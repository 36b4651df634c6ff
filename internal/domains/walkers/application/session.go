// Package application holds the walker-side session: the live list of walks waiting for a
// walker, the live pickup view of the walk the walker is looking at, and the lifecycle actions.
package application

import (
	"context"
	"errors"
	"strings"
	"sync"

	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	walkports "github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
	"github.com/Apurer/dogwalk-api/internal/shared/live"
)

var (
	// ErrSessionClosed is returned by session actions after Close.
	ErrSessionClosed = errors.New("walker session closed")
	// ErrWalkIDRequired is returned when focusing without a walk ID.
	ErrWalkIDRequired = errors.New("walk id is required")
)

// Session is the walker-side view of the marketplace for one signed-in walker.
type Session struct {
	caller auth.Caller
	walks  walkports.Service

	available *live.Value[[]*walktypes.WalkProjection]
	focused   *live.Value[*walktypes.PickupViewProjection]
	lastError *live.Value[error]

	mu           sync.Mutex
	availableSub walkports.Subscription
	focusSub     walkports.Subscription
	focusID      string
	focusGen     uint64
	closed       bool
}

// SessionOption customizes StartSession.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	skipAvailable bool
}

// WithoutAvailable opens a focus-only session: Available stays nil and no available-walks
// subscription is held.
func WithoutAvailable() SessionOption {
	return func(o *sessionOptions) { o.skipAvailable = true }
}

// StartSession opens a walker session subscribed to the available walks until Close or ctx is cancelled.
func StartSession(ctx context.Context, caller auth.Caller, walks walkports.Service, opts ...SessionOption) (*Session, error) {
	if err := caller.Require(auth.RoleWalker); err != nil {
		return nil, err
	}
	var options sessionOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	s := &Session{
		caller:    caller,
		walks:     walks,
		available: live.NewValue[[]*walktypes.WalkProjection](nil),
		focused:   live.NewValue[*walktypes.PickupViewProjection](nil),
		lastError: live.NewValue[error](nil),
	}
	if options.skipAvailable {
		return s, nil
	}
	sub, err := walks.WatchAvailable(ctx, caller, func(list []*walktypes.WalkProjection, err error) {
		if err != nil {
			s.lastError.Set(err)
			return
		}
		s.available.Set(list)
	})
	if err != nil {
		return nil, err
	}
	s.availableSub = sub
	return s, nil
}

// Caller returns the walker the session belongs to.
func (s *Session) Caller() auth.Caller {
	return s.caller
}

// Available is the list of REQUESTED walks, oldest first.
func (s *Session) Available() *live.Value[[]*walktypes.WalkProjection] {
	return s.available
}

// Focused is the pickup view of the focused walk; nil before Focus.
func (s *Session) Focused() *live.Value[*walktypes.PickupViewProjection] {
	return s.focused
}

// LastError holds the most recent failure reported by a subscription.
func (s *Session) LastError() *live.Value[error] {
	return s.lastError
}

// Focus subscribes to the pickup view of walkID and releases the previous focus.
// Views of a previously focused walk are never delivered after Focus returns.
func (s *Session) Focus(ctx context.Context, walkID string) error {
	walkID = strings.TrimSpace(walkID)
	if walkID == "" {
		return ErrWalkIDRequired
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	previous := s.focusSub
	s.focusSub = nil
	s.focusID = walkID
	s.focusGen++
	gen := s.focusGen
	s.focused.Set(nil)
	s.mu.Unlock()

	if previous != nil {
		previous.Unsubscribe()
	}

	sub, err := s.walks.WatchPickupView(ctx, walktypes.WalkIdentifier{Caller: s.caller, WalkID: walkID}, func(view *walktypes.PickupViewProjection, err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.focusGen != gen {
			return
		}
		if err != nil {
			s.lastError.Set(err)
			return
		}
		s.focused.Set(view)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed || s.focusGen != gen {
		s.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	s.focusSub = sub
	s.mu.Unlock()
	return nil
}

// FocusedWalkID returns the ID passed to the latest Focus.
func (s *Session) FocusedWalkID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focusID
}

// Claim assigns the walker to a REQUESTED walk.
func (s *Session) Claim(ctx context.Context, walkID string) (*walktypes.WalkProjection, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	return s.walks.ClaimWalk(ctx, walktypes.WalkTransitionInput{Caller: s.caller, WalkID: walkID})
}

// Start begins the walker's ACCEPTED walk.
func (s *Session) Start(ctx context.Context, walkID string) (*walktypes.WalkProjection, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	return s.walks.StartWalk(ctx, walktypes.WalkTransitionInput{Caller: s.caller, WalkID: walkID})
}

// Finish completes the walker's walk with the code the owner gave them.
func (s *Session) Finish(ctx context.Context, walkID, code string) (*walktypes.WalkProjection, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	return s.walks.FinishWalk(ctx, walktypes.FinishWalkInput{Caller: s.caller, WalkID: walkID, Code: code})
}

// Close releases the available-walks subscription and the focus. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := []walkports.Subscription{s.availableSub, s.focusSub}
	s.availableSub, s.focusSub = nil, nil
	s.mu.Unlock()

	for _, sub := range subs {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	s.available.Close()
	s.focused.Close()
	s.lastError.Close()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
