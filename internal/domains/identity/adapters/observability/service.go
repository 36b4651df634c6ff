package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/dogwalk-api/internal/domains/identity/ports"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

const tracerName = "github.com/Apurer/dogwalk-api/internal/domains/identity/adapters/observability/service"

// Service decorates the identity port with tracing, logging, and metrics. Token values are never logged.
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
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// IssueToken signs a token with instrumentation.
func (s *Service) IssueToken(ctx context.Context, userID string, role auth.Role, ttl time.Duration) (*ports.Token, error) {
	ctx, span := s.tracer.Start(ctx, "Service.IssueToken", trace.WithAttributes(
		attribute.String("identity.user_id", userID),
		attribute.String("identity.role", string(role))))
	defer span.End()

	token, err := s.inner.IssueToken(ctx, userID, role, ttl)
	if err != nil {
		s.fail(ctx, span, err, "failed to issue token", slog.String("user.id", userID))
		return nil, err
	}
	addCounter(ctx, s.metrics.issued, attribute.String("identity.role", string(role)))
	s.logger.LogAttrs(ctx, slog.LevelInfo, "token issued",
		slog.String("user.id", userID), slog.String("token.id", token.ID), slog.Time("expires_at", token.ExpiresAt))
	return token, nil
}

// Authenticate resolves a bearer token. Rejections are logged at debug level.
func (s *Service) Authenticate(ctx context.Context, bearer string) (auth.Caller, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Authenticate")
	defer span.End()

	caller, err := s.inner.Authenticate(ctx, bearer)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			addCounter(ctx, s.metrics.rejected)
			span.SetAttributes(attribute.Bool("identity.rejected", true))
			s.logger.LogAttrs(ctx, slog.LevelDebug, "token rejected", slog.String("reason", err.Error()))
			return caller, err
		}
		s.fail(ctx, span, err, "failed to authenticate")
		return caller, err
	}
	span.SetAttributes(attribute.String("identity.user_id", caller.UserID), attribute.String("identity.role", string(caller.Role)))
	return caller, nil
}

// SignOut revokes the caller's sessions.
func (s *Service) SignOut(ctx context.Context, caller auth.Caller) error {
	ctx, span := s.tracer.Start(ctx, "Service.SignOut", trace.WithAttributes(attribute.String("identity.user_id", caller.UserID)))
	defer span.End()

	if err := s.inner.SignOut(ctx, caller); err != nil {
		s.fail(ctx, span, err, "failed to sign out", slog.String("user.id", caller.UserID))
		return err
	}
	addCounter(ctx, s.metrics.signOuts)
	s.logger.LogAttrs(ctx, slog.LevelInfo, "signed out", slog.String("user.id", caller.UserID))
	return nil
}

func (s *Service) fail(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	attrs = append(attrs, slog.String("error", err.Error()))
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

type serviceMetrics struct {
	issued   metric.Int64Counter
	rejected metric.Int64Counter
	signOuts metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	issued, _ := m.Int64Counter("identity.service.tokens_issued", metric.WithDescription("Number of tokens issued"))
	rejected, _ := m.Int64Counter("identity.service.rejected", metric.WithDescription("Number of rejected bearer tokens"))
	signOuts, _ := m.Int64Counter("identity.service.sign_outs", metric.WithDescription("Number of sign-outs"))
	return serviceMetrics{issued: issued, rejected: rejected, signOuts: signOuts}
}

func addCounter(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

var _ ports.Service = (*Service)(nil)
