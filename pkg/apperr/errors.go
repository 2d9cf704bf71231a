// Package apperr provides the error taxonomy shared by the generation, validation,
// scanning, lifecycle, and dispatch stages.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind distinguishes the failure classes surfaced to callers.
type Kind string

const (
	KindInput              Kind = "input_error"
	KindUpstreamGeneration Kind = "upstream_generation_error"
	KindParse              Kind = "parse_error"
	KindSchemaValidation   Kind = "schema_validation_error"
	KindSecurityPolicy     Kind = "security_policy_violation"
	KindPersistence        Kind = "persistence_error"
	KindExecutionTransport Kind = "execution_transport_error"
	KindNotFound           Kind = "not_found"
	KindForbidden          Kind = "forbidden"
	KindConflict           Kind = "conflict"
	KindUnauthorized       Kind = "unauthorized"
	KindInternal           Kind = "internal_error"
)

// Sentinels matched by Error.Is, one per kind.
var (
	ErrInput              = errors.New("input error")
	ErrUpstreamGeneration = errors.New("upstream generation error")
	ErrParse              = errors.New("parse error")
	ErrSchemaValidation   = errors.New("schema validation error")
	ErrSecurityPolicy     = errors.New("security policy violation")
	ErrPersistence        = errors.New("persistence error")
	ErrExecutionTransport = errors.New("execution transport error")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrUnauthorized       = errors.New("unauthorized")
)

var sentinels = map[Kind]error{
	KindInput:              ErrInput,
	KindUpstreamGeneration: ErrUpstreamGeneration,
	KindParse:              ErrParse,
	KindSchemaValidation:   ErrSchemaValidation,
	KindSecurityPolicy:     ErrSecurityPolicy,
	KindPersistence:        ErrPersistence,
	KindExecutionTransport: ErrExecutionTransport,
	KindNotFound:           ErrNotFound,
	KindForbidden:          ErrForbidden,
	KindConflict:           ErrConflict,
	KindUnauthorized:       ErrUnauthorized,
}

// Violation is one failed structural or referential check.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Path + ": " + v.Message
}

// Error wraps a failure with its kind and operation.
type Error struct {
	Op         string      // Operation name
	Kind       Kind        // Failure class
	Message    string      // Human-readable message
	Violations []Violation // Schema or referential failures, if any
	Status     int         // Upstream HTTP status when the engine answered
	Err        error       // Underlying error
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(e.Op)
	b.WriteString(": ")

	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Kind))
	}

	if len(e.Violations) > 0 {
		parts := make([]string, 0, len(e.Violations))
		for _, v := range e.Violations {
			parts = append(parts, v.String())
		}

		fmt.Fprintf(&b, " (%s)", strings.Join(parts, "; "))
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind as well as the wrapped error.
func (e *Error) Is(target error) bool {
	if sentinel, ok := sentinels[e.Kind]; ok && target == sentinel {
		return true
	}

	return errors.Is(e.Err, target)
}

// New creates a kinded error.
func New(op string, kind Kind, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// Wrap creates a kinded error around err.
func Wrap(op string, kind Kind, message string, err error) *Error {
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}

// Schema creates a schema validation error carrying every violation.
func Schema(op string, violations []Violation) *Error {
	return &Error{
		Op:         op,
		Kind:       KindSchemaValidation,
		Message:    fmt.Sprintf("graph does not match the required structure: %d violation(s)", len(violations)),
		Violations: violations,
	}
}

// KindOf returns the kind of the first apperr.Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	return KindInternal
}

// ViolationsOf returns the violations of the first apperr.Error in the chain.
func ViolationsOf(err error) []Violation {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Violations
	}

	return nil
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
