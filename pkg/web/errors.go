package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dukex/flowforge/pkg/deployment"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleCompileError answers with a failed compilation result. Structural
// and template problems are the caller's fault (400); generator failures on a
// well-formed graph are unprocessable (422).
func handleCompileError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrGraphValidation),
		errors.Is(err, models.ErrMissingEntryNode),
		errors.Is(err, models.ErrCycleDetected),
		errors.Is(err, models.ErrNodeNotFound),
		errors.Is(err, models.ErrTemplate):
		return c.Status(fiber.StatusBadRequest).JSON(models.FailedCompilation(err))

	case errors.Is(err, models.ErrCompilation), errors.Is(err, models.ErrBinding):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(models.FailedCompilation(err))

	default:
		return internalError(c, err)
	}
}

func handleDeploymentError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsDeploymentNotFound(err):
		return notFound(c, "deployment_not_found", "deployment not found")

	case errors.Is(err, deployment.ErrInvalidRequest):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
