package web

import (
	"errors"
	"log/slog"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// violationProblem is a problem document extended with schema violations.
type violationProblem struct {
	*problems.Problem

	Violations []apperr.Violation `json:"violations,omitempty"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindInput:              fiber.StatusBadRequest,
	apperr.KindUnauthorized:       fiber.StatusUnauthorized,
	apperr.KindForbidden:          fiber.StatusForbidden,
	apperr.KindNotFound:           fiber.StatusNotFound,
	apperr.KindConflict:           fiber.StatusConflict,
	apperr.KindParse:              fiber.StatusUnprocessableEntity,
	apperr.KindSchemaValidation:   fiber.StatusUnprocessableEntity,
	apperr.KindSecurityPolicy:     fiber.StatusUnprocessableEntity,
	apperr.KindPersistence:        fiber.StatusBadRequest,
	apperr.KindUpstreamGeneration: fiber.StatusBadGateway,
	apperr.KindExecutionTransport: fiber.StatusBadGateway,
}

// StatusOf returns the HTTP status a service error is reported with.
func StatusOf(err error) int {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}

	if appErr.Kind == apperr.KindExecutionTransport && appErr.Status >= 400 && appErr.Status < 500 {
		return appErr.Status
	}

	if status, ok := kindStatus[appErr.Kind]; ok {
		return status
	}

	return fiber.StatusInternalServerError
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType(string(apperr.KindInput)).
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusUnauthorized).
		WithInstance(c.Path()).
		WithType(string(apperr.KindUnauthorized)).
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

// handleServiceError translates a service error into a problem response.
func handleServiceError(c fiber.Ctx, logger *slog.Logger, err error) error {
	status := StatusOf(err)
	kind := apperr.KindOf(err)

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(string(kind))

	if kind == apperr.KindInternal {
		logger.ErrorContext(c.Context(), "Unexpected error", "path", c.Path(), "error", err)

		return c.Status(status).JSON(problem.WithDetail("internal server error"))
	}

	problem = problem.WithDetail(detail(err))

	if status >= fiber.StatusInternalServerError {
		logger.ErrorContext(c.Context(), "Request failed", "path", c.Path(), "kind", kind, "error", err)
	}

	if violations := apperr.ViolationsOf(err); len(violations) > 0 {
		return c.Status(status).JSON(violationProblem{Problem: problem, Violations: violations})
	}

	return c.Status(status).JSON(problem)
}

// detail is the message of the first apperr.Error without its operation prefix.
func detail(err error) string {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return err.Error()
	}

	switch {
	case appErr.Message != "":
		return appErr.Message
	case appErr.Err != nil:
		return appErr.Err.Error()
	default:
		return string(appErr.Kind)
	}
}
