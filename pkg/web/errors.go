package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/hookplane/hookplane/pkg/activation"
	"github.com/hookplane/hookplane/pkg/dispatch"
	"github.com/hookplane/hookplane/pkg/persistence"
	"github.com/hookplane/hookplane/pkg/router"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func notReady(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(503).
		WithInstance(c.Path()).
		WithType("not_initialized").
		WithDetail(detail)

	return c.Status(fiber.StatusServiceUnavailable).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleDispatchError maps dispatch failures to problem responses.
func handleDispatchError(c fiber.Ctx, err error) error {
	switch {
	case activation.IsNotInitialized(err):
		return notReady(c, "control plane is still starting up")

	case router.IsRouteNotFound(err):
		// Only active workflows expose production routes; the hint keeps
		// callers from chasing a typo when the workflow merely is not active.
		return notFound(c, "webhook_not_registered",
			"webhook is not registered; the owning workflow may not be active")

	case dispatch.IsStartNodeNotFound(err):
		return conflict(c, "webhook registration is stale; the workflow graph changed")

	case dispatch.IsPayloadInvalid(err):
		return badRequest(c, err.Error())

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", "workflow not found")

	default:
		return internalError(c, err)
	}
}

// handleActivationError maps lifecycle failures to problem responses.
func handleActivationError(c fiber.Ctx, err error) error {
	switch {
	case activation.IsNotInitialized(err):
		return notReady(c, "control plane is still starting up")

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", "workflow not found")

	case activation.IsNotActivatable(err):
		return badRequest(c, err.Error())

	case router.IsDuplicateRoute(err):
		return conflict(c, err.Error())

	default:
		return internalError(c, err)
	}
}
