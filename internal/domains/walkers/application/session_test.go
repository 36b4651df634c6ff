package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	walkdocs "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/persistence/documents"
	walkapp "github.com/Apurer/dogwalk-api/internal/domains/walks/application"
	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	"github.com/Apurer/dogwalk-api/internal/domains/walks/domain"
	walkports "github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/platform/docstore/memory"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

var (
	owner   = auth.Caller{UserID: "owner-1", Role: auth.RoleOwner}
	walkerA = auth.Caller{UserID: "walker-a", Role: auth.RoleWalker}
	walkerB = auth.Caller{UserID: "walker-b", Role: auth.RoleWalker}
)

func newWalks() (*memory.Store, *walkapp.Service) {
	store := memory.NewStore()
	return store, walkapp.NewService(walkdocs.NewRepository(store), walkapp.WithEndCodeGenerator(func() (string, error) {
		return "4821", nil
	}))
}

func requestWalk(t *testing.T, svc *walkapp.Service, pets ...string) *walktypes.WalkProjection {
	t.Helper()
	created, err := svc.RequestWalk(context.Background(), walktypes.RequestWalkInput{
		Caller:    owner,
		PetNames:  pets,
		Latitude:  19.4,
		Longitude: -99.1,
	})
	require.NoError(t, err)
	return created
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestStartSession_RequiresWalker(t *testing.T) {
	_, svc := newWalks()
	_, err := StartSession(context.Background(), owner, svc)
	require.ErrorIs(t, err, auth.ErrForbidden)
	_, err = StartSession(context.Background(), auth.Caller{}, svc)
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)
}

func TestSession_AvailableWalks(t *testing.T) {
	_, svc := newWalks()
	ctx := context.Background()
	first := requestWalk(t, svc, "Fido")
	second := requestWalk(t, svc, "Rex")

	session, err := StartSession(ctx, walkerA, svc)
	require.NoError(t, err)
	defer session.Close()

	waitFor(t, func() bool {
		list := session.Available().Get()
		return len(list) == 2 && list[0].Entity.ID == first.Entity.ID && list[1].Entity.ID == second.Entity.ID
	})
	for _, p := range session.Available().Get() {
		require.Empty(t, p.Entity.EndCode)
	}

	_, err = session.Claim(ctx, first.Entity.ID)
	require.NoError(t, err)
	waitFor(t, func() bool {
		list := session.Available().Get()
		return len(list) == 1 && list[0].Entity.ID == second.Entity.ID
	})
}

// countingWalks records how many available-walks subscriptions were opened.
type countingWalks struct {
	walkports.Service
	availableWatches atomic.Int32
}

func (c *countingWalks) WatchAvailable(ctx context.Context, caller auth.Caller, listener walkports.WalkListListener) (walkports.Subscription, error) {
	c.availableWatches.Add(1)
	return c.Service.WatchAvailable(ctx, caller, listener)
}

func TestSession_WithoutAvailableOnlyFocuses(t *testing.T) {
	_, svc := newWalks()
	walks := &countingWalks{Service: svc}
	ctx := context.Background()
	created := requestWalk(t, svc, "Fido")

	session, err := StartSession(ctx, walkerA, walks, WithoutAvailable())
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Focus(ctx, created.Entity.ID))
	waitFor(t, func() bool {
		view := session.Focused().Get()
		return view != nil && view.Entity.Walk.ID == created.Entity.ID
	})
	require.Zero(t, walks.availableWatches.Load())
	require.Nil(t, session.Available().Get())

	full, err := StartSession(ctx, walkerB, walks)
	require.NoError(t, err)
	defer full.Close()
	require.EqualValues(t, 1, walks.availableWatches.Load())
}

func TestSession_FocusFollowsWalkAndSwitches(t *testing.T) {
	_, svc := newWalks()
	ctx := context.Background()
	first := requestWalk(t, svc, "Fido", "Rex")
	second := requestWalk(t, svc, "Bo")

	session, err := StartSession(ctx, walkerA, svc)
	require.NoError(t, err)
	defer session.Close()

	require.ErrorIs(t, session.Focus(ctx, " "), ErrWalkIDRequired)

	require.NoError(t, session.Focus(ctx, first.Entity.ID))
	waitFor(t, func() bool {
		view := session.Focused().Get()
		return view != nil && view.Entity.Walk.ID == first.Entity.ID && view.Entity.Zone == nil
	})

	_, err = session.Claim(ctx, first.Entity.ID)
	require.NoError(t, err)
	waitFor(t, func() bool {
		view := session.Focused().Get()
		return view != nil && view.Entity.Zone != nil && view.Entity.CanStart
	})
	require.Empty(t, session.Focused().Get().Entity.Walk.EndCode)

	require.NoError(t, session.Focus(ctx, second.Entity.ID))
	require.Equal(t, second.Entity.ID, session.FocusedWalkID())
	waitFor(t, func() bool {
		view := session.Focused().Get()
		return view != nil && view.Entity.Walk.ID == second.Entity.ID
	})

	_, err = session.Start(ctx, first.Entity.ID)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, second.Entity.ID, session.Focused().Get().Entity.Walk.ID)
}

func TestSession_LifecycleScenario(t *testing.T) {
	_, svc := newWalks()
	ctx := context.Background()
	created := requestWalk(t, svc, "Fido", "Rex")
	require.Equal(t, 100.0, created.Entity.TotalCost)

	a, err := StartSession(ctx, walkerA, svc)
	require.NoError(t, err)
	defer a.Close()
	b, err := StartSession(ctx, walkerB, svc)
	require.NoError(t, err)
	defer b.Close()

	type result struct {
		who string
		err error
	}
	results := make(chan result, 2)
	for _, s := range []*Session{a, b} {
		go func(s *Session) {
			_, err := s.Claim(ctx, created.Entity.ID)
			results <- result{who: s.Caller().UserID, err: err}
		}(s)
	}
	var winner string
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err == nil {
			require.Empty(t, winner)
			winner = r.who
			continue
		}
		require.ErrorIs(t, r.err, walkapp.ErrConflict)
	}
	require.NotEmpty(t, winner)

	assigned, other := a, b
	if winner == walkerB.UserID {
		assigned, other = b, a
	}
	_, err = other.Start(ctx, created.Entity.ID)
	require.ErrorIs(t, err, walkapp.ErrForbidden)

	started, err := assigned.Start(ctx, created.Entity.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInProgress, started.Entity.Status)

	_, err = assigned.Finish(ctx, created.Entity.ID, "9999")
	require.ErrorIs(t, err, walkapp.ErrInvalidInput)

	finished, err := assigned.Finish(ctx, created.Entity.ID, "4821")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, finished.Entity.Status)
	require.Equal(t, winner, finished.Entity.WalkerID)
}

func TestSession_CloseReleasesEverything(t *testing.T) {
	store, svc := newWalks()
	ctx := context.Background()
	created := requestWalk(t, svc, "Fido")

	session, err := StartSession(ctx, walkerA, svc)
	require.NoError(t, err)
	require.NoError(t, session.Focus(ctx, created.Entity.ID))
	require.Equal(t, 2, store.Subscriptions())

	session.Close()
	session.Close()
	waitFor(t, func() bool { return store.Subscriptions() == 0 })

	require.ErrorIs(t, session.Focus(ctx, created.Entity.ID), ErrSessionClosed)
	_, err = session.Claim(ctx, created.Entity.ID)
	require.ErrorIs(t, err, ErrSessionClosed)
}
