// Package main provides the hookplane control plane server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/hookplane/hookplane/pkg/activation"
	"github.com/hookplane/hookplane/pkg/bridge"
	"github.com/hookplane/hookplane/pkg/dispatch"
	"github.com/hookplane/hookplane/pkg/engine/local"
	"github.com/hookplane/hookplane/pkg/eventbus"
	"github.com/hookplane/hookplane/pkg/events"
	"github.com/hookplane/hookplane/pkg/otelhelper"
	"github.com/hookplane/hookplane/pkg/persistence"
	"github.com/hookplane/hookplane/pkg/router"
	"github.com/hookplane/hookplane/pkg/subscription"
	"github.com/hookplane/hookplane/pkg/web"
)

// Server wires the control plane components together and serves the HTTP
// surface.
type Server struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus

	manager  *activation.Manager
	active   *subscription.ActiveWorkflows
	handlers *web.Handlers
}

func NewServer(logger *slog.Logger, p persistence.Persistence, eventBus eventbus.EventBus) *Server {
	return &Server{
		logger:      logger,
		persistence: p,
		eventBus:    eventBus,
	}
}

// Start builds the component graph, activates persisted workflows, and serves
// until the listener stops.
func (s *Server) Start(ctx context.Context, port int) error {
	eng := local.NewEngine(s.logger)
	rt := router.NewRouter(s.persistence.WebhookRepository(), s.logger)
	active := subscription.NewActiveWorkflows(s.logger)
	br := bridge.NewBridge(eng, s.persistence.WorkflowRepository(), s.logger)
	manager := activation.NewManager(s.persistence, rt, active, br, eng, s.eventBus, s.logger)

	tracer, err := otelhelper.NewTracer(ctx, "hookplane")
	if err != nil {
		s.logger.WarnContext(ctx, "Tracing disabled", "error", err)

		tracer = nil
	}

	dispatcher := dispatch.NewDispatcher(rt, s.persistence.WorkflowRepository(), eng,
		manager, s.eventBus, tracer, s.logger)

	s.manager = manager
	s.active = active
	s.handlers = web.NewHandlers(dispatcher, manager, s.logger)

	if err := s.subscribeSourceEvents(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to source events: %w", err)
	}

	if err := manager.InitWebhooks(ctx); err != nil {
		return fmt.Errorf("failed to initialize webhooks: %w", err)
	}

	return s.App().Listen(":" + strconv.Itoa(port))
}

// App builds the fiber application. Split from Start so tests can exercise the
// route table without a listener.
func (s *Server) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("hookplane")
	})

	app.All("/webhook/*", s.handlers.HandleWebhook)

	w := app.Group("/workflows")
	w.Get("/active", s.handlers.GetActiveWorkflows)
	w.Post("/deactivate-all", s.handlers.DeactivateAll)
	w.Post("/:id/activate", s.handlers.ActivateWorkflow)
	w.Post("/:id/deactivate", s.handlers.DeactivateWorkflow)
	w.Get("/:id/activation-error", s.handlers.GetActivationError)

	app.Get("/webhooks/methods", s.handlers.GetWebhookMethods)

	return app
}

// subscribeSourceEvents routes external source notifications from the bus into
// the live subscription set.
func (s *Server) subscribeSourceEvents(ctx context.Context) error {
	err := s.eventBus.Handle(events.SourceEventType, func(ctx context.Context, event any) error {
		sourceEvent, ok := event.(*events.SourceEvent)
		if !ok {
			return fmt.Errorf("unexpected source event payload type %T", event)
		}

		if err := sourceEvent.Validate(); err != nil {
			s.logger.WarnContext(ctx, "Dropping invalid source event", "error", err)

			return nil
		}

		s.active.Notify(ctx, sourceEvent.WorkflowID, sourceEvent.NodeName, sourceEvent.Payload)

		return nil
	})
	if err != nil {
		return err
	}

	return s.eventBus.Subscribe(ctx)
}
