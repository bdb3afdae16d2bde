// Package dispatch is the runtime path for inbound webhook events: route
// resolution, workflow loading, and delegation to the execution engine.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hookplane/hookplane/pkg/activation"
	"github.com/hookplane/hookplane/pkg/engine"
	"github.com/hookplane/hookplane/pkg/eventbus"
	"github.com/hookplane/hookplane/pkg/events"
	"github.com/hookplane/hookplane/pkg/models"
	"github.com/hookplane/hookplane/pkg/otelhelper"
	"github.com/hookplane/hookplane/pkg/router"
)

// Initialized reports whether the control plane finished bootstrap. The
// activation manager satisfies this.
type Initialized interface {
	Initialized() bool
}

// Dispatcher resolves inbound webhook requests and runs the owning workflow.
// It imposes no deadline on a run; the engine owns completion.
type Dispatcher struct {
	router    *router.Router
	workflows workflowLoader
	engine    engine.Engine
	lifecycle Initialized
	eventBus  eventbus.EventBus
	tracer    trace.Tracer
	logger    *slog.Logger
}

type workflowLoader interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
}

func NewDispatcher(
	rt *router.Router,
	workflows workflowLoader,
	eng engine.Engine,
	lifecycle Initialized,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		router:    rt,
		workflows: workflows,
		engine:    eng,
		lifecycle: lifecycle,
		eventBus:  eventBus,
		tracer:    tracer,
		logger:    logger.With("module", "webhook_dispatcher"),
	}
}

// HandleWebhook resolves the route for an inbound request and runs the owning
// workflow from the matched start node in webhook mode, returning the engine's
// completion payload.
func (d *Dispatcher) HandleWebhook(ctx context.Context, method, path string, req *engine.WebhookRequest) (*engine.WebhookResult, error) {
	if d.lifecycle != nil && !d.lifecycle.Initialized() {
		return nil, fmt.Errorf("%w: webhook received before bootstrap finished", activation.ErrNotInitialized)
	}

	method = strings.ToUpper(method)
	path = models.NormalizeWebhookPath(path)

	ctx, span := d.startSpan(ctx, method, path)
	defer span.End()

	resolved, err := d.router.Resolve(ctx, method, path)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	registration := resolved.Registration

	workflow, err := d.workflows.GetByID(ctx, registration.WorkflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load workflow %s for route %s %s: %w",
			registration.WorkflowID, method, path, err)
	}

	execCtx, err := d.engine.BuildContext(ctx, workflow, registration.NodeName, models.ExecutionModeWebhook)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to build execution context: %w", err)
	}

	definition := d.matchDefinition(workflow, registration)
	if definition == nil {
		// Resolution succeeded but the live graph no longer defines this
		// route: the registration row is stale.
		err := fmt.Errorf("%w: no webhook node on workflow %s defines %s %s",
			ErrStartNodeNotFound, workflow.ID, registration.Method, registration.Path)
		otelhelper.SetError(span, err)

		return nil, err
	}

	startNode := workflow.NodeByName(definition.NodeName)
	if startNode == nil {
		err := fmt.Errorf("%w: %s in workflow %s", ErrStartNodeNotFound, definition.NodeName, workflow.ID)
		otelhelper.SetError(span, err)

		return nil, err
	}

	if definition.PayloadSchema != nil {
		if err := validatePayload(req.Body, definition.PayloadSchema); err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}
	}

	req.Method = method
	req.Path = path
	req.Params = resolved.Params

	result, err := d.engine.RunWebhook(ctx, workflow, startNode, execCtx, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("webhook run failed for workflow %s: %w", workflow.ID, err)
	}

	d.publishReceived(ctx, workflow.ID, method, path, result.Status)

	return result, nil
}

// ListMethods returns the methods statically registered for the exact path.
func (d *Dispatcher) ListMethods(ctx context.Context, path string) ([]string, error) {
	return d.router.ListMethods(ctx, path)
}

// matchDefinition re-derives the workflow's webhook definitions and finds the
// one matching the registered route exactly. The router match gives routing;
// the definition recovers response mode, headers, and payload schema.
func (d *Dispatcher) matchDefinition(workflow *models.Workflow, registration *models.WebhookRegistration) *models.WebhookDefinition {
	for _, definition := range workflow.WebhookDefinitions() {
		if definition.Method == registration.Method && definition.Path == registration.Path {
			return definition
		}
	}

	return nil
}

func validatePayload(body map[string]any, schema map[string]any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(body))
	if err != nil {
		return fmt.Errorf("failed to evaluate payload schema: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrPayloadInvalid, strings.Join(descriptions, "; "))
	}

	return nil
}

func (d *Dispatcher) startSpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	if d.tracer == nil {
		return noop.NewTracerProvider().Tracer("dispatch").Start(ctx, "webhook.dispatch")
	}

	return otelhelper.StartSpan(ctx, d.tracer, "webhook.dispatch",
		attribute.String(otelhelper.WebhookMethodKey, method),
		attribute.String(otelhelper.WebhookPathKey, path))
}

func (d *Dispatcher) publishReceived(ctx context.Context, workflowID, method, path string, status int) {
	if d.eventBus == nil {
		return
	}

	event := events.WebhookReceived{
		BaseEvent: events.NewBaseEvent(events.WebhookReceivedEvent, workflowID),
		Method:    method,
		Path:      path,
		Status:    status,
	}
	event.ID = d.eventBus.GenerateID()

	if err := d.eventBus.Publish(ctx, workflowID, event); err != nil {
		d.logger.Warn("Failed to publish webhook received event",
			"workflow_id", workflowID,
			"error", err)
	}
}
