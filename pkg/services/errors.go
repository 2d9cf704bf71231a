// Package services implements the conversation, synthesis and manual execution use cases.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/persistence"
	"github.com/go-playground/validator/v10"
)

// Input errors, surfaced as apperr.KindInput.
var (
	ErrEmptyUserID    = errors.New("user ID cannot be empty")
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds the maximum input length")
	ErrInvalidStatus  = errors.New("invalid workflow status")
	ErrGraphRequired  = errors.New("graph is required")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func inputError(op string, err error) error {
	return apperr.Wrap(op, apperr.KindInput, err.Error(), err)
}

// requestError converts validator failures into an input error listing every field.
func requestError(op string, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperr.Wrap(op, apperr.KindInput, "invalid request", err)
	}

	violations := make([]apperr.Violation, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		violations = append(violations, apperr.Violation{
			Path:    fieldErr.Field(),
			Message: fmt.Sprintf("failed %q validation", fieldErr.Tag()),
		})
	}

	return &apperr.Error{Op: op, Kind: apperr.KindInput, Message: "invalid request", Violations: violations, Err: err}
}

// storageError maps persistence sentinels onto the caller-facing taxonomy.
func storageError(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case persistence.IsConversationNotFound(err):
		return apperr.Wrap(op, apperr.KindNotFound, "conversation not found", err)
	case persistence.IsWorkflowNotFound(err):
		return apperr.Wrap(op, apperr.KindNotFound, "workflow not found", err)
	case persistence.IsStatusConflict(err):
		return apperr.Wrap(op, apperr.KindConflict, "workflow was modified concurrently", err)
	default:
		return apperr.Wrap(op, apperr.KindInternal, "", err)
	}
}

// describe renders err without its operation prefix, for audit records and events.
func describe(err error) string {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return err.Error()
	}

	message := appErr.Message
	if message == "" && appErr.Err != nil {
		message = appErr.Err.Error()
	}

	if len(appErr.Violations) > 0 {
		parts := make([]string, 0, len(appErr.Violations))
		for _, v := range appErr.Violations {
			parts = append(parts, v.String())
		}

		message += " (" + strings.Join(parts, "; ") + ")"
	}

	return message
}
