package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	"github.com/Apurer/dogwalk-api/internal/domains/walks/domain"
	"github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

const tracerName = "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/observability/service"

// Service decorates the walks port with tracing, logging, and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

// RequestWalk creates a walk with instrumentation.
func (s *Service) RequestWalk(ctx context.Context, input walktypes.RequestWalkInput) (*walktypes.WalkProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.RequestWalk",
		attribute.String("walk.owner_id", input.Caller.UserID),
		attribute.Int("walk.pet_count", len(input.PetNames)),
		attribute.Bool("walk.idempotent", input.IdempotencyKey != ""))
	defer span.End()

	s.logInfo(ctx, "requesting walk", slog.String("owner.id", input.Caller.UserID), slog.Int("pets", len(input.PetNames)))
	result, err := s.inner.RequestWalk(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to request walk", slog.String("owner.id", input.Caller.UserID))
	}
	if result != nil && result.Entity != nil {
		span.SetAttributes(attribute.String("walk.id", result.Entity.ID))
		s.metrics.recordRequested(ctx, len(result.Entity.PetNames))
		s.logEvents(ctx, result.Entity)
		s.logInfo(ctx, "walk requested", slog.String("walk.id", result.Entity.ID), slog.Float64("total_cost", result.Entity.TotalCost))
	}
	return result, nil
}

// ClaimWalk assigns the calling walker.
func (s *Service) ClaimWalk(ctx context.Context, input walktypes.WalkTransitionInput) (*walktypes.WalkProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.ClaimWalk", walkAttrs(input.Caller, input.WalkID)...)
	defer span.End()

	s.logInfo(ctx, "claiming walk", slog.String("walk.id", input.WalkID), slog.String("walker.id", input.Caller.UserID))
	result, err := s.inner.ClaimWalk(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to claim walk", slog.String("walk.id", input.WalkID))
	}
	s.metrics.recordClaimed(ctx)
	s.logTransition(ctx, result)
	return result, nil
}

// StartWalk moves the walk into progress.
func (s *Service) StartWalk(ctx context.Context, input walktypes.WalkTransitionInput) (*walktypes.WalkProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.StartWalk", walkAttrs(input.Caller, input.WalkID)...)
	defer span.End()

	s.logInfo(ctx, "starting walk", slog.String("walk.id", input.WalkID))
	result, err := s.inner.StartWalk(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to start walk", slog.String("walk.id", input.WalkID))
	}
	s.metrics.recordStarted(ctx)
	s.logTransition(ctx, result)
	return result, nil
}

// FinishWalk completes the walk after verifying the end code.
func (s *Service) FinishWalk(ctx context.Context, input walktypes.FinishWalkInput) (*walktypes.WalkProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.FinishWalk", walkAttrs(input.Caller, input.WalkID)...)
	defer span.End()

	s.logInfo(ctx, "finishing walk", slog.String("walk.id", input.WalkID))
	result, err := s.inner.FinishWalk(ctx, input)
	if err != nil {
		if errors.Is(err, domain.ErrCodeMismatch) {
			s.metrics.recordCodeRejected(ctx)
		}
		return nil, s.handleError(ctx, span, err, "failed to finish walk", slog.String("walk.id", input.WalkID))
	}
	s.metrics.recordCompleted(ctx)
	s.logTransition(ctx, result)
	return result, nil
}

// GetWalk loads one walk.
func (s *Service) GetWalk(ctx context.Context, input walktypes.WalkIdentifier) (*walktypes.WalkProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.GetWalk", walkAttrs(input.Caller, input.WalkID)...)
	defer span.End()

	result, err := s.inner.GetWalk(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to get walk", slog.String("walk.id", input.WalkID))
	}
	return result, nil
}

// GetPickupView derives the pickup view.
func (s *Service) GetPickupView(ctx context.Context, input walktypes.WalkIdentifier) (*walktypes.PickupViewProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.GetPickupView", walkAttrs(input.Caller, input.WalkID)...)
	defer span.End()

	result, err := s.inner.GetPickupView(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to derive pickup view", slog.String("walk.id", input.WalkID))
	}
	if result != nil && result.Entity != nil {
		span.SetAttributes(attribute.Bool("walk.zone", result.Entity.Zone != nil))
	}
	return result, nil
}

// ListAvailable returns REQUESTED walks.
func (s *Service) ListAvailable(ctx context.Context, caller auth.Caller) ([]*walktypes.WalkProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.ListAvailable", attribute.String("caller.id", caller.UserID))
	defer span.End()

	result, err := s.inner.ListAvailable(ctx, caller)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list available walks")
	}
	span.SetAttributes(attribute.Int("walk.result.count", len(result)))
	return result, nil
}

// GetActiveWalk returns the owner's active walk.
func (s *Service) GetActiveWalk(ctx context.Context, caller auth.Caller) (*walktypes.WalkProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.GetActiveWalk", attribute.String("caller.id", caller.UserID))
	defer span.End()

	result, err := s.inner.GetActiveWalk(ctx, caller)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to get active walk")
	}
	return result, nil
}

// WatchAvailable opens a live subscription on REQUESTED walks.
func (s *Service) WatchAvailable(ctx context.Context, caller auth.Caller, listener ports.WalkListListener) (ports.Subscription, error) {
	ctx, span := s.startSpan(ctx, "Service.WatchAvailable", attribute.String("caller.id", caller.UserID))
	defer span.End()

	sub, err := s.inner.WatchAvailable(ctx, caller, listener)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to watch available walks")
	}
	s.logInfo(ctx, "watching available walks", slog.String("walker.id", caller.UserID))
	return s.metrics.track(ctx, "available", sub), nil
}

// WatchActiveWalk opens a live subscription on the owner's active walk.
func (s *Service) WatchActiveWalk(ctx context.Context, caller auth.Caller, listener ports.WalkListener) (ports.Subscription, error) {
	ctx, span := s.startSpan(ctx, "Service.WatchActiveWalk", attribute.String("caller.id", caller.UserID))
	defer span.End()

	sub, err := s.inner.WatchActiveWalk(ctx, caller, listener)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to watch active walk")
	}
	s.logInfo(ctx, "watching active walk", slog.String("owner.id", caller.UserID))
	return s.metrics.track(ctx, "active_walk", sub), nil
}

// WatchPickupView opens a live subscription on one walk's pickup view.
func (s *Service) WatchPickupView(ctx context.Context, input walktypes.WalkIdentifier, listener ports.PickupViewListener) (ports.Subscription, error) {
	ctx, span := s.startSpan(ctx, "Service.WatchPickupView", walkAttrs(input.Caller, input.WalkID)...)
	defer span.End()

	sub, err := s.inner.WatchPickupView(ctx, input, listener)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to watch pickup view", slog.String("walk.id", input.WalkID))
	}
	s.logInfo(ctx, "watching pickup view", slog.String("walk.id", input.WalkID), slog.String("walker.id", input.Caller.UserID))
	return s.metrics.track(ctx, "pickup_view", sub), nil
}

func (s *Service) logTransition(ctx context.Context, result *walktypes.WalkProjection) {
	if result == nil || result.Entity == nil {
		return
	}
	s.logEvents(ctx, result.Entity)
}

func (s *Service) logEvents(ctx context.Context, walk *domain.Walk) {
	for _, event := range walk.Events() {
		s.logInfo(ctx, "domain event",
			slog.String("event", event.EventName()),
			slog.String("walk.id", walk.ID),
			slog.String("status", string(walk.Status)),
			slog.Time("occurred_at", event.OccurredAt()))
	}
}

func walkAttrs(caller auth.Caller, walkID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("walk.id", walkID),
		attribute.String("caller.id", caller.UserID),
		attribute.String("caller.role", string(caller.Role)),
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceMetrics struct {
	walksRequested metric.Int64Counter
	walksClaimed   metric.Int64Counter
	walksStarted   metric.Int64Counter
	walksCompleted metric.Int64Counter
	codesRejected  metric.Int64Counter
	subscriptions  metric.Int64UpDownCounter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	requested, _ := m.Int64Counter("walks.service.requested", metric.WithDescription("Number of walks requested"))
	claimed, _ := m.Int64Counter("walks.service.claimed", metric.WithDescription("Number of walks claimed"))
	started, _ := m.Int64Counter("walks.service.started", metric.WithDescription("Number of walks started"))
	completed, _ := m.Int64Counter("walks.service.completed", metric.WithDescription("Number of walks completed"))
	rejected, _ := m.Int64Counter("walks.service.code_rejected", metric.WithDescription("Number of finish attempts with a wrong end code"))
	subscriptions, _ := m.Int64UpDownCounter("walks.service.subscriptions", metric.WithDescription("Live walk subscriptions"))
	return serviceMetrics{
		walksRequested: requested,
		walksClaimed:   claimed,
		walksStarted:   started,
		walksCompleted: completed,
		codesRejected:  rejected,
		subscriptions:  subscriptions,
	}
}

func (m serviceMetrics) recordRequested(ctx context.Context, pets int) {
	addCounter(ctx, m.walksRequested, 1, attribute.Int("walk.pet_count", pets))
}

func (m serviceMetrics) recordClaimed(ctx context.Context) {
	addCounter(ctx, m.walksClaimed, 1)
}

func (m serviceMetrics) recordStarted(ctx context.Context) {
	addCounter(ctx, m.walksStarted, 1)
}

func (m serviceMetrics) recordCompleted(ctx context.Context) {
	addCounter(ctx, m.walksCompleted, 1)
}

func (m serviceMetrics) recordCodeRejected(ctx context.Context) {
	addCounter(ctx, m.codesRejected, 1)
}

func (m serviceMetrics) track(ctx context.Context, kind string, sub ports.Subscription) ports.Subscription {
	if m.subscriptions == nil || sub == nil {
		return sub
	}
	attrs := metric.WithAttributes(attribute.String("walk.subscription", kind))
	m.subscriptions.Add(ctx, 1, attrs)
	return &trackedSubscription{inner: sub, release: func() {
		m.subscriptions.Add(context.Background(), -1, attrs)
	}}
}

func addCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

type trackedSubscription struct {
	inner   ports.Subscription
	once    sync.Once
	release func()
}

func (t *trackedSubscription) Unsubscribe() {
	t.inner.Unsubscribe()
	t.once.Do(t.release)
}

var _ ports.Service = (*Service)(nil)
