// Package web provides the HTTP surface of the control plane: the production
// webhook endpoint and the administrative lifecycle API.
package web

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/hookplane/hookplane/pkg/activation"
	"github.com/hookplane/hookplane/pkg/dispatch"
	"github.com/hookplane/hookplane/pkg/engine"
	"github.com/hookplane/hookplane/pkg/models"
)

type Handlers struct {
	dispatcher *dispatch.Dispatcher
	manager    *activation.Manager
	logger     *slog.Logger
}

func NewHandlers(dispatcher *dispatch.Dispatcher, manager *activation.Manager, logger *slog.Logger) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		manager:    manager,
		logger:     logger.With("module", "web"),
	}
}

// HandleWebhook accepts any method on the webhook wildcard route and hands the
// request to the dispatcher.
func (h *Handlers) HandleWebhook(c fiber.Ctx) error {
	path := c.Params("*")
	if path == "" {
		return badRequest(c, "missing webhook path")
	}

	req, err := buildWebhookRequest(c)
	if err != nil {
		return badRequest(c, "invalid JSON in request body")
	}

	result, err := h.dispatcher.HandleWebhook(c.Context(), c.Method(), path, req)
	if err != nil {
		return handleDispatchError(c, err)
	}

	for name, value := range result.Headers {
		c.Set(name, value)
	}

	status := result.Status
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(result.Body)
}

// GetWebhookMethods answers capability discovery for an exact static path.
func (h *Handlers) GetWebhookMethods(c fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return badRequest(c, "missing path query parameter")
	}

	methods, err := h.dispatcher.ListMethods(c.Context(), path)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"path": path, "methods": methods})
}

// ActivateWorkflow brings one workflow live.
func (h *Handlers) ActivateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	if err := h.manager.Add(c.Context(), id, activationMode(c), nil); err != nil {
		return handleActivationError(c, err)
	}

	return c.JSON(fiber.Map{"id": id, "active": true})
}

// DeactivateWorkflow tears one workflow down.
func (h *Handlers) DeactivateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	if err := h.manager.Remove(c.Context(), id); err != nil {
		return handleActivationError(c, err)
	}

	return c.JSON(fiber.Map{"id": id, "active": false})
}

// DeactivateAll tears down every live workflow.
func (h *Handlers) DeactivateAll(c fiber.Ctx) error {
	if err := h.manager.RemoveAll(c.Context()); err != nil {
		return handleActivationError(c, err)
	}

	return c.JSON(fiber.Map{"active": []string{}})
}

// GetActiveWorkflows lists persisted-active workflows minus those carrying an
// activation error.
func (h *Handlers) GetActiveWorkflows(c fiber.Ctx) error {
	ids, err := h.manager.ListActive(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"active": ids})
}

// GetActivationError returns the recorded activation failure for a workflow.
func (h *Handlers) GetActivationError(c fiber.Ctx) error {
	id := c.Params("id")

	entry, exists := h.manager.ActivationError(id)
	if !exists {
		return notFound(c, "activation_error_not_found", "no activation error recorded for workflow")
	}

	return c.JSON(fiber.Map{"id": id, "error": entry})
}

func buildWebhookRequest(c fiber.Ctx) (*engine.WebhookRequest, error) {
	req := &engine.WebhookRequest{
		Headers: make(map[string]string),
		Query:   c.Queries(),
	}

	for name, values := range c.GetReqHeaders() {
		req.Headers[name] = strings.Join(values, ", ")
	}

	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req.Body); err != nil {
			return nil, err
		}
	}

	return req, nil
}

func activationMode(c fiber.Ctx) models.ActivationMode {
	if c.Query("mode") == "update" {
		return models.ActivationModeUpdate
	}

	return models.ActivationModeActivate
}
