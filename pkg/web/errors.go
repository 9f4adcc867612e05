package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType(problemType).
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

// definitionInvalid carries the full problem list so a caller can fix the
// whole graph in one round trip instead of one complaint at a time.
func definitionInvalid(c fiber.Ctx, err error) error {
	detail := err.Error()

	var definitionErr *models.DefinitionError
	if errors.As(err, &definitionErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"type":     "definition_invalid",
			"title":    "Unprocessable Entity",
			"status":   fiber.StatusUnprocessableEntity,
			"detail":   "workflow definition failed validation",
			"instance": c.Path(),
			"problems": definitionErr.Problems,
		})
	}

	problem := problems.NewStatusProblem(fiber.StatusUnprocessableEntity).
		WithInstance(c.Path()).
		WithType("definition_invalid").
		WithDetail(detail)

	return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
}

// handleServiceError maps service layer errors onto RFC 7807 responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrDefinitionInvalid):
		return definitionInvalid(c, err)

	case errors.Is(err, services.ErrInvalidRequest):
		return badRequest(c, err.Error())

	case errors.Is(err, services.ErrExecutionNotRunning):
		problem := problems.NewStatusProblem(fiber.StatusConflict).
			WithInstance(c.Path()).
			WithType("execution_not_running").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, persistence.ErrWorkflowNotFound):
		return notFound(c, "workflow_not_found", "workflow not found")

	case errors.Is(err, persistence.ErrTemplateNotFound):
		return notFound(c, "template_not_found", "template not found")

	case errors.Is(err, persistence.ErrExecutionNotFound):
		return notFound(c, "execution_not_found", "execution not found")

	default:
		return internalError(c, err)
	}
}
