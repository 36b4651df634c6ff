package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	walkmemory "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/memory"
	walkobs "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/observability"
	walkdocs "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/persistence/documents"
	walkpostgres "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/persistence/postgres"
	walkapp "github.com/Apurer/dogwalk-api/internal/domains/walks/application"
	walkports "github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/platform/docstore"
	docstorememory "github.com/Apurer/dogwalk-api/internal/platform/docstore/memory"
	docstorepostgres "github.com/Apurer/dogwalk-api/internal/platform/docstore/postgres"
	"github.com/Apurer/dogwalk-api/internal/platform/migrations"
	platformobservability "github.com/Apurer/dogwalk-api/internal/platform/observability"
	platformpostgres "github.com/Apurer/dogwalk-api/internal/platform/postgres"
	walkactivities "github.com/Apurer/dogwalk-api/internal/platform/temporal/activities/walks"
	walkworkflows "github.com/Apurer/dogwalk-api/internal/platform/temporal/workflows/walks"
)

func main() {
	ctx := context.Background()
	const serviceName = "dogwalk-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	store, idempotency, cleanupStores := buildStores(ctx, logger)
	defer cleanupStores()
	walkService := walkobs.New(
		walkapp.NewService(walkdocs.NewRepository(store), walkapp.WithIdempotencyStore(idempotency)),
		walkobs.WithLogger(logger),
		walkobs.WithTracer(instruments.Tracer("internal.walks.application")),
		walkobs.WithMeter(instruments.Meter("internal.walks.application")),
	)
	activities := walkactivities.NewActivities(walkService)

	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")})
	if err != nil {
		logger.Error("failed to configure Temporal tracing interceptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clientOptions := client.Options{
		HostPort:  envOrDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		Namespace: envOrDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, walkworkflows.WalkRequestTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(walkworkflows.WalkRequestWorkflow, workflow.RegisterOptions{Name: walkworkflows.WalkRequestWorkflowName})
	w.RegisterActivityWithOptions(activities.RequestWalk, activity.RegisterOptions{Name: walkactivities.RequestWalkActivityName})

	logger.Info("worker listening", slog.String("taskQueue", walkworkflows.WalkRequestTaskQueue), slog.String("namespace", clientOptions.Namespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}

// buildStores returns the document and idempotency stores the activities write through. Without
// PostgreSQL the worker keeps walks in memory, which only suits local experiments.
func buildStores(ctx context.Context, logger *slog.Logger) (docstore.Store, walkports.IdempotencyStore, func()) {
	db, cleanupDB := platformpostgres.ConnectFromEnv(ctx, logger)
	if db == nil {
		logger.Warn("worker document store running in memory")
		return docstorememory.NewStore(), walkmemory.NewIdempotencyStore(), cleanupDB
	}
	if err := migrations.Run(db); err != nil {
		logger.Error("worker failed to migrate postgres", slog.String("error", err.Error()))
		cleanupDB()
		os.Exit(1)
	}
	store, err := docstorepostgres.NewStore(db, "", docstorepostgres.WithLogger(logger))
	if err != nil {
		logger.Error("worker failed to open document store", slog.String("error", err.Error()))
		cleanupDB()
		os.Exit(1)
	}
	logger.Info("worker document store configured with postgres")
	return store, walkpostgres.NewIdempotencyStore(db), func() {
		_ = store.Close()
		cleanupDB()
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
