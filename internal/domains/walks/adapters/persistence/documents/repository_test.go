package documents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/dogwalk-api/internal/domains/walks/domain"
	"github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/platform/docstore"
	"github.com/Apurer/dogwalk-api/internal/platform/docstore/memory"
	"github.com/Apurer/dogwalk-api/internal/shared/projection"
)

func createWalk(t *testing.T, repo *Repository, owner string) *projection.Projection[*domain.Walk] {
	t.Helper()
	walk, err := domain.NewWalk(owner, []string{"Fido", "Rex"}, domain.Location{Latitude: 19.4, Longitude: -99.1}, "4821")
	require.NoError(t, err)
	created, err := repo.Create(context.Background(), walk)
	require.NoError(t, err)
	return created
}

func TestRepository_CreateAndGet(t *testing.T) {
	store := memory.NewStore()
	repo := NewRepository(store)

	created := createWalk(t, repo, "owner-1")
	require.NotEmpty(t, created.Entity.ID)
	require.False(t, created.Metadata.CreatedAt.IsZero())

	loaded, err := repo.GetByID(context.Background(), created.Entity.ID)
	require.NoError(t, err)
	require.Equal(t, "owner-1", loaded.Entity.OwnerID)
	require.Equal(t, []string{"Fido", "Rex"}, loaded.Entity.PetNames)
	require.Equal(t, 100.0, loaded.Entity.TotalCost)
	require.Equal(t, "4821", loaded.Entity.EndCode)
	require.Equal(t, domain.Location{Latitude: 19.4, Longitude: -99.1}, loaded.Entity.Pickup)

	doc, err := store.Get(context.Background(), docstore.Join(Collection, created.Entity.ID))
	require.NoError(t, err)
	require.Equal(t, "REQUESTED", doc.Fields.String("status"))
	require.Equal(t, "", doc.Fields.String("walkerId"))

	_, err = repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, ports.ErrNotFound)
	_, err = repo.GetByID(context.Background(), "")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_ConcurrentClaimsKeepFirstWalker(t *testing.T) {
	repo := NewRepository(memory.NewStore())
	created := createWalk(t, repo, "owner-1")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, walker := range []string{"walker-a", "walker-b"} {
		wg.Add(1)
		go func(i int, walker string) {
			defer wg.Done()
			_, errs[i] = repo.Update(context.Background(), created.Entity.ID, func(w *domain.Walk) error {
				return w.Claim(walker)
			})
		}(i, walker)
	}
	wg.Wait()

	var winners []string
	for i, err := range errs {
		if err == nil {
			winners = append(winners, []string{"walker-a", "walker-b"}[i])
			continue
		}
		require.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	}
	require.Len(t, winners, 1)

	loaded, err := repo.GetByID(context.Background(), created.Entity.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, loaded.Entity.Status)
	require.Equal(t, winners[0], loaded.Entity.WalkerID)
}

func TestRepository_UpdateReturnsEvents(t *testing.T) {
	repo := NewRepository(memory.NewStore())
	created := createWalk(t, repo, "owner-1")

	updated, err := repo.Update(context.Background(), created.Entity.ID, func(w *domain.Walk) error { return w.Claim("walker-a") })
	require.NoError(t, err)
	require.Len(t, updated.Entity.Events(), 1)
	require.Equal(t, "walks.walk.claimed", updated.Entity.Events()[0].EventName())
}

func TestRepository_FailedMutationWritesNothing(t *testing.T) {
	repo := NewRepository(memory.NewStore())
	created := createWalk(t, repo, "owner-1")

	_, err := repo.Update(context.Background(), created.Entity.ID, func(w *domain.Walk) error { return w.Start("walker-a") })
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	loaded, err := repo.GetByID(context.Background(), created.Entity.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRequested, loaded.Entity.Status)
}

func TestRepository_ListAndWatch(t *testing.T) {
	repo := NewRepository(memory.NewStore())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := createWalk(t, repo, "owner-1")
	second := createWalk(t, repo, "owner-2")

	available, err := repo.ListByStatus(ctx, domain.StatusRequested)
	require.NoError(t, err)
	require.Len(t, available, 2)
	require.Equal(t, first.Entity.ID, available[0].Entity.ID)
	require.Equal(t, second.Entity.ID, available[1].Entity.ID)

	mine, err := repo.ListByOwner(ctx, "owner-2")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	var (
		mu     sync.Mutex
		latest []*projection.Projection[*domain.Walk]
	)
	sub, err := repo.WatchByStatus(ctx, domain.StatusRequested, func(list []*projection.Projection[*domain.Walk], err error) {
		if err != nil {
			return
		}
		mu.Lock()
		latest = list
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	_, err = repo.Update(ctx, first.Entity.ID, func(w *domain.Walk) error { return w.Claim("walker-a") })
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 1 && latest[0].Entity.ID == second.Entity.ID
	}, time.Second, 5*time.Millisecond)
}

func TestRepository_WatchByIDMissing(t *testing.T) {
	repo := NewRepository(memory.NewStore())
	got := make(chan error, 1)
	sub, err := repo.WatchByID(context.Background(), "nope", func(p *projection.Projection[*domain.Walk], err error) {
		if p == nil && err == nil {
			got <- nil
		} else {
			got <- errors.New("unexpected delivery")
		}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, <-got)
}

func TestRepository_CorruptDocument(t *testing.T) {
	store := memory.NewStore()
	repo := NewRepository(store)
	require.NoError(t, store.Set(context.Background(), "walks/bad", docstore.Fields{"status": "ACCEPTED"}))

	_, err := repo.GetByID(context.Background(), "bad")
	require.ErrorIs(t, err, domain.ErrInconsistentWalkData)
}

func TestRepository_Unavailable(t *testing.T) {
	store := memory.NewStore()
	repo := NewRepository(store)
	store.FailWith(errors.New("offline"))

	_, err := repo.ListByStatus(context.Background(), domain.StatusRequested)
	require.ErrorIs(t, err, ports.ErrUnavailable)
}
