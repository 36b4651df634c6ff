//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/Apurer/dogwalk-api/internal/domains/identity/domain"
	"github.com/Apurer/dogwalk-api/internal/domains/identity/ports"
	"github.com/Apurer/dogwalk-api/internal/platform/migrations"
	platformpostgres "github.com/Apurer/dogwalk-api/internal/platform/postgres"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

func setupSessionsPostgresContainer(t *testing.T) (*gorm.DB, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("dogwalk_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := platformpostgres.Connect(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db))

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}
	return db, cleanup
}

func TestSessionStore_SaveGetDeletePurge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db, cleanup := setupSessionsPostgresContainer(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSessionStore(db)
	now := time.Now().UTC().Truncate(time.Second)

	active, err := domain.NewSession("token-a", "owner-1", auth.RoleOwner, now, time.Hour)
	require.NoError(t, err)
	expired, err := domain.NewSession("token-b", "walker-1", auth.RoleWalker, now.Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, active))
	require.NoError(t, store.Save(ctx, expired))

	got, err := store.Get(ctx, "token-a")
	require.NoError(t, err)
	require.Equal(t, "owner-1", got.UserID)
	require.Equal(t, auth.RoleOwner, got.Role)

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)
	_, err = store.Get(ctx, "token-b")
	require.ErrorIs(t, err, ports.ErrSessionNotFound)

	require.NoError(t, store.DeleteByUser(ctx, "owner-1"))
	_, err = store.Get(ctx, "token-a")
	require.ErrorIs(t, err, ports.ErrSessionNotFound)
}
