package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"gorm.io/gorm"

	walkserver "github.com/Apurer/dogwalk-api/go"
	identitymemory "github.com/Apurer/dogwalk-api/internal/domains/identity/adapters/memory"
	identityobs "github.com/Apurer/dogwalk-api/internal/domains/identity/adapters/observability"
	identitypostgres "github.com/Apurer/dogwalk-api/internal/domains/identity/adapters/persistence/postgres"
	identityapp "github.com/Apurer/dogwalk-api/internal/domains/identity/application"
	identityports "github.com/Apurer/dogwalk-api/internal/domains/identity/ports"
	ownerdocs "github.com/Apurer/dogwalk-api/internal/domains/owners/adapters/persistence/documents"
	ownerapp "github.com/Apurer/dogwalk-api/internal/domains/owners/application"
	ownerports "github.com/Apurer/dogwalk-api/internal/domains/owners/ports"
	walkmemory "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/memory"
	walkobs "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/observability"
	walkdocs "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/persistence/documents"
	walkpostgres "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/persistence/postgres"
	walkworkflows "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/workflows"
	walkapp "github.com/Apurer/dogwalk-api/internal/domains/walks/application"
	walkports "github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/platform/docstore"
	docstorememory "github.com/Apurer/dogwalk-api/internal/platform/docstore/memory"
	docstorepostgres "github.com/Apurer/dogwalk-api/internal/platform/docstore/postgres"
	"github.com/Apurer/dogwalk-api/internal/platform/migrations"
	platformobservability "github.com/Apurer/dogwalk-api/internal/platform/observability"
	platformpostgres "github.com/Apurer/dogwalk-api/internal/platform/postgres"
)

const serviceName = "dogwalk-api"

// App is the wired object graph behind the HTTP API.
type App struct {
	Store     docstore.Store
	Walks     walkports.Service
	Workflows walkports.WorkflowOrchestrator
	Owners    ownerports.Service
	Identity  identityports.Service
	Sessions  identityports.SessionStore
	Keys      walkports.IdempotencyStore
	Router    *gin.Engine
}

// Run boots the dog-walk HTTP API with observability, stores, and workflows wired. It returns
// when ctx is cancelled or the server fails.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	app, cleanup, err := Build(ctx, cfg, instruments)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.SessionPurgeInterval > 0 {
		go purgeExpired(ctx, cfg.SessionPurgeInterval, logger, map[string]purger{
			"sessions":         app.Sessions,
			"idempotency keys": app.Keys,
		})
	}

	server := &http.Server{Addr: cfg.Addr(), Handler: app.Router}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("dog-walk API listening", slog.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("dog-walk API server exited", slog.String("addr", server.Addr), slog.String("error", err.Error()))
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("dog-walk API shutting down")
		return server.Shutdown(shutdownCtx)
	}
}

// Build wires stores, services, and the router for cfg. The returned cleanup releases every
// connection Build opened.
func Build(ctx context.Context, cfg Config, instruments *platformobservability.Instruments) (*App, func(), error) {
	logger := effectiveLogger(instruments)
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	db, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	if db != nil {
		cleanups = append(cleanups, func() { platformpostgres.Close(db) })
	}

	store, err := buildDocumentStore(cfg, db, logger)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, func() { _ = store.Close() })

	var idempotency walkports.IdempotencyStore = walkmemory.NewIdempotencyStore()
	var sessions identityports.SessionStore = identitymemory.NewSessionStore()
	if db != nil {
		idempotency = walkpostgres.NewIdempotencyStore(db)
		sessions = identitypostgres.NewSessionStore(db)
	}

	coreWalks := walkapp.NewService(walkdocs.NewRepository(store),
		walkapp.WithIdempotencyStore(idempotency),
		walkapp.WithZoneRadius(cfg.ZoneRadiusMeters),
	)
	walks := walkobs.New(coreWalks,
		walkobs.WithLogger(logger),
		walkobs.WithTracer(instruments.Tracer("internal.walks.application")),
		walkobs.WithMeter(instruments.Meter("internal.walks.application")),
	)

	var workflows walkports.WorkflowOrchestrator = walkworkflows.NewInlineWalkWorkflows(walks)
	if temporalClient, err := connectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal workflows unavailable, running inline RequestWalk", slog.String("error", err.Error()))
	} else {
		cleanups = append(cleanups, temporalClient.Close)
		workflows = walkworkflows.NewTemporalWalkWorkflows(temporalClient)
		logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	ownerRepo := ownerdocs.NewRepository(store)
	owners := ownerapp.NewService(ownerRepo, ownerRepo)

	coreIdentity, err := identityapp.NewService(cfg.JWTSecret, sessions, identityapp.WithDefaultTTL(cfg.TokenTTL))
	if err != nil {
		return fail(err)
	}
	identity := identityobs.New(coreIdentity,
		identityobs.WithLogger(logger),
		identityobs.WithTracer(instruments.Tracer("internal.identity.application")),
		identityobs.WithMeter(instruments.Meter("internal.identity.application")),
	)

	responder := walkserver.NewResponder("")
	handlers := walkserver.ApiHandleFunctions{
		WalkAPI:    walkserver.NewWalkAPI(walks, workflows, responder),
		OwnerAPI:   walkserver.NewOwnerAPI(walks, owners, responder),
		SessionAPI: walkserver.NewSessionAPI(identity, responder),
		LiveAPI:    walkserver.NewLiveAPI(walks, owners, workflows, responder, logger, walkserver.DefaultLiveSettings()),
	}
	router := walkserver.NewRouter(handlers, identity,
		walkserver.WithResponder(responder),
		walkserver.WithMiddleware(otelgin.Middleware(serviceName)),
	)

	return &App{
		Store:     store,
		Walks:     walks,
		Workflows: workflows,
		Owners:    owners,
		Identity:  identity,
		Sessions:  sessions,
		Keys:      idempotency,
		Router:    router,
	}, cleanup, nil
}

// connectPostgres returns nil when no DSN is configured. A failed connection falls back to
// in-memory stores unless the document store itself must live in PostgreSQL.
func connectPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*gorm.DB, error) {
	if cfg.PostgresDSN == "" {
		logger.Warn("POSTGRES_DSN not set, falling back to in-memory stores")
		return nil, nil
	}
	db, err := platformpostgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		if cfg.DocstoreBackend == BackendPostgres {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Warn("failed to connect to postgres, falling back to in-memory stores", slog.String("error", err.Error()))
		return nil, nil
	}
	if err := migrations.Run(db); err != nil {
		platformpostgres.Close(db)
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	logger.Info("postgres connection established")
	return db, nil
}

func buildDocumentStore(cfg Config, db *gorm.DB, logger *slog.Logger) (docstore.Store, error) {
	if cfg.DocstoreBackend != BackendPostgres {
		logger.Info("document store configured in memory")
		return docstorememory.NewStore(), nil
	}
	store, err := docstorepostgres.NewStore(db, cfg.PostgresDSN, docstorepostgres.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	logger.Info("document store configured with postgres")
	return store, nil
}

type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// purgeExpired drops expired sessions and idempotency keys every interval until ctx ends.
func purgeExpired(ctx context.Context, interval time.Duration, logger *slog.Logger, stores map[string]purger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, store := range stores {
				purged, err := store.PurgeExpired(ctx)
				if err != nil {
					logger.Warn("purge failed", slog.String("store", name), slog.String("error", err.Error()))
					continue
				}
				logger.Info("purge completed", slog.String("store", name), slog.Int64("purged", purged))
			}
		}
	}
}

var (
	errTemporalDisabled         = errors.New("temporal disabled via TEMPORAL_DISABLED env")
	errTemporalNeedsSharedStore = errors.New("temporal workflows need DOCSTORE_BACKEND=postgres")
)

func connectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errTemporalDisabled
	}
	// The worker writes walks into its own store; only postgres is shared with the API.
	if cfg.DocstoreBackend != BackendPostgres {
		return nil, errTemporalNeedsSharedStore
	}
	tracerOptions := temporalotel.TracerOptions{}
	if instruments != nil {
		tracerOptions.Tracer = instruments.Tracer("temporal-client")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(effectiveLogger(instruments)),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
