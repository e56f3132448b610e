package web

import (
	"errors"

	"github.com/dukex/socialflow/pkg/executions"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/routines"
	"github.com/dukex/socialflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("missing_user").
		WithDetail(UserIDHeader + " header is required")

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsNotFoundError(err):
		return notFound(c, notFoundKind(err), err.Error())

	case services.IsValidationError(err),
		errors.Is(err, executions.ErrInvalidSubmission),
		errors.Is(err, routines.ErrInvalidRoutine):
		return badRequest(c, err.Error())

	case errors.Is(err, models.ErrAccountNotEligible):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("account_not_eligible").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		return internalError(c, err)
	}
}

func notFoundKind(err error) string {
	switch {
	case errors.Is(err, services.ErrWorkflowNotFound):
		return "workflow_not_found"
	case errors.Is(err, services.ErrRoutineNotFound):
		return "routine_not_found"
	case errors.Is(err, models.ErrStepNotFound):
		return "step_not_found"
	case errors.Is(err, models.ErrEdgeNotFound):
		return "edge_not_found"
	default:
		return "execution_not_found"
	}
}
