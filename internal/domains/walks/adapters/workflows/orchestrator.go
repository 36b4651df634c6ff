package workflows

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	walkapp "github.com/Apurer/dogwalk-api/internal/domains/walks/application"
	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	"github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	walkactivities "github.com/Apurer/dogwalk-api/internal/platform/temporal/activities/walks"
	walkworkflows "github.com/Apurer/dogwalk-api/internal/platform/temporal/workflows/walks"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

var (
	_ ports.WorkflowOrchestrator = (*TemporalWalkWorkflows)(nil)
	_ ports.WorkflowOrchestrator = (*InlineWalkWorkflows)(nil)
)

// TemporalWalkWorkflows starts walk workflows on a Temporal cluster.
type TemporalWalkWorkflows struct {
	client    client.Client
	taskQueue string
}

// NewTemporalWalkWorkflows wires a Temporal client into the orchestrator.
func NewTemporalWalkWorkflows(c client.Client) *TemporalWalkWorkflows {
	return &TemporalWalkWorkflows{client: c, taskQueue: walkworkflows.WalkRequestTaskQueue}
}

// RequestWalk starts the Temporal workflow that creates a walk and waits for its result.
func (o *TemporalWalkWorkflows) RequestWalk(ctx context.Context, input walktypes.RequestWalkInput) (*walktypes.WalkProjection, error) {
	if o == nil || o.client == nil {
		return nil, errors.New("temporal walk workflows not configured")
	}
	if err := input.Caller.Require(auth.RoleOwner); err != nil {
		return nil, err
	}
	traceComponent := workflowTraceComponent(ctx)
	workflowID := buildWalkRequestWorkflowID(input, traceComponent)
	options := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: o.taskQueue,
	}
	run, err := o.client.ExecuteWorkflow(
		ctx,
		options,
		walkworkflows.WalkRequestWorkflow,
		walkworkflows.WalkRequestWorkflowInput{Command: input, TraceID: traceComponent},
	)
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) && strings.TrimSpace(input.IdempotencyKey) != "" {
			existingRun := o.client.GetWorkflow(ctx, workflowID, alreadyStarted.RunId)
			var projection walktypes.WalkProjection
			if err := existingRun.Get(ctx, &projection); err != nil {
				return nil, restoreError(err)
			}
			return &projection, nil
		}
		return nil, err
	}
	var projection walktypes.WalkProjection
	if err := run.Get(ctx, &projection); err != nil {
		return nil, restoreError(err)
	}
	return &projection, nil
}

// InlineWalkWorkflows executes the service directly without Temporal, useful for tests or dev fallbacks.
type InlineWalkWorkflows struct {
	service ports.Service
}

// NewInlineWalkWorkflows wraps the walks service for synchronous execution.
func NewInlineWalkWorkflows(service ports.Service) *InlineWalkWorkflows {
	return &InlineWalkWorkflows{service: service}
}

// RequestWalk delegates to the application service without durable orchestration.
func (o *InlineWalkWorkflows) RequestWalk(ctx context.Context, input walktypes.RequestWalkInput) (*walktypes.WalkProjection, error) {
	if o == nil || o.service == nil {
		return nil, errors.New("inline walk workflows not configured")
	}
	return o.service.RequestWalk(ctx, input)
}

// restoreError maps non-retryable activity failures back onto the application errors they came from.
func restoreError(err error) error {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return err
	}
	switch appErr.Type() {
	case walkactivities.ErrorTypeInvalidInput:
		return fmt.Errorf("%w: %s", walkapp.ErrInvalidInput, appErr.Message())
	case walkactivities.ErrorTypeConflict:
		return fmt.Errorf("%w: %s", walkapp.ErrConflict, appErr.Message())
	case walkactivities.ErrorTypeForbidden:
		return fmt.Errorf("%w: %s", walkapp.ErrForbidden, appErr.Message())
	case walkactivities.ErrorTypeNotAuthenticated:
		return fmt.Errorf("%w: %s", auth.ErrNotAuthenticated, appErr.Message())
	default:
		return err
	}
}

func buildWalkRequestWorkflowID(input walktypes.RequestWalkInput, traceComponent string) string {
	owner := strings.TrimSpace(input.Caller.UserID)
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		return fmt.Sprintf("walk-request-idem-%s", hashIdempotencyKey(owner+"/"+key))
	}
	return fmt.Sprintf("walk-request-%s-%s", hashIdempotencyKey(owner), traceComponent)
}

func hashIdempotencyKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

func workflowTraceComponent(ctx context.Context) string {
	traceComponent := workflowTraceID(ctx)
	if traceComponent != "" {
		return traceComponent
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}

func workflowTraceID(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	spanCtx := span.SpanContext()
	if !spanCtx.IsValid() {
		return ""
	}
	traceID := spanCtx.TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}
