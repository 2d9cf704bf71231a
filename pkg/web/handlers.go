// Package web provides the HTTP handlers of the chat, conversation and workflow endpoints.
package web

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// UserIDHeader carries the identity asserted by the upstream gateway.
const UserIDHeader = "X-User-ID"

type userIDKey struct{}

type APIHandlers struct {
	conversations *services.Conversations
	synthesis     *services.Synthesis
	execution     *services.Execution
	validator     *validator.Validate
	logger        *slog.Logger
}

func NewAPIHandlers(
	conversations *services.Conversations,
	synthesis *services.Synthesis,
	execution *services.Execution,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		conversations: conversations,
		synthesis:     synthesis,
		execution:     execution,
		validator:     validator,
		logger:        logger,
	}
}

// RequireUser rejects requests without a user identity.
func (h *APIHandlers) RequireUser(c fiber.Ctx) error {
	userID := strings.TrimSpace(c.Get(UserIDHeader))
	if userID == "" {
		return unauthorized(c, UserIDHeader+" header is required")
	}

	c.Locals(userIDKey{}, userID)

	return c.Next()
}

func userID(c fiber.Ctx) string {
	id, _ := c.Locals(userIDKey{}).(string)

	return id
}

// bind decodes and validates the JSON body into req, writing the problem response on failure.
func (h *APIHandlers) bind(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return false, h.invalid(c, err)
	}

	return true, nil
}

func (h *APIHandlers) invalid(c fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return badRequest(c, err.Error())
	}

	violations := make([]apperr.Violation, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		violations = append(violations, apperr.Violation{
			Path:    fieldErr.Field(),
			Message: "failed " + strconv.Quote(fieldErr.Tag()) + " validation",
		})
	}

	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType(string(apperr.KindInput)).
		WithDetail("request body is invalid")

	return c.Status(fiber.StatusBadRequest).JSON(violationProblem{Problem: problem, Violations: violations})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, ok := h.conversations.HealthCheck(c.Context())

	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unhealthy",
			"message": message,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "healthy",
		"message": message,
	})
}

func (h *APIHandlers) Chat(c fiber.Ctx) error {
	var req ChatRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	result, err := h.synthesis.Synthesize(c.Context(), services.SynthesizeRequest{
		UserID:         userID(c),
		ConversationID: req.ConversationID,
		Text:           req.Message,
	})
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ListConversations(c fiber.Ctx) error {
	conversations, err := h.conversations.List(c.Context(), userID(c))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *APIHandlers) CreateConversation(c fiber.Ctx) error {
	var req CreateConversationRequest

	if len(c.Body()) > 0 {
		if ok, err := h.bind(c, &req); !ok {
			return err
		}
	}

	created, err := h.conversations.Create(c.Context(), userID(c), req.Title)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetConversation(c fiber.Ctx) error {
	detail, err := h.conversations.Get(c.Context(), userID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) RenameConversation(c fiber.Ctx) error {
	var req RenameConversationRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	renamed, err := h.conversations.Rename(c.Context(), userID(c), c.Params("id"), req.Title)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(renamed)
}

func (h *APIHandlers) DeleteConversation(c fiber.Ctx) error {
	if err := h.conversations.Delete(c.Context(), userID(c), c.Params("id")); err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ListMessages(c fiber.Ctx) error {
	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "limit must be an integer")
		}

		limit = parsed
	}

	messages, err := h.conversations.ListMessages(c.Context(), userID(c), c.Params("id"), limit)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}

func (h *APIHandlers) AppendMessage(c fiber.Ctx) error {
	var req AppendMessageRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	message, err := h.conversations.AppendMessage(c.Context(), userID(c), c.Params("id"), services.AppendMessageRequest{
		Role:     req.Role,
		Content:  req.Content,
		Metadata: req.Metadata,
		Tokens:   req.Tokens,
		Error:    req.Error,
	})
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(message)
}

func (h *APIHandlers) ListWorkflows(c fiber.Ctx) error {
	workflows, err := h.conversations.ListWorkflows(c.Context(), userID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	created, err := h.execution.CreatePending(c.Context(), userID(c), c.Params("id"), req.Graph)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.conversations.OwnedWorkflow(c.Context(), userID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req UpdateWorkflowRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	updated, err := h.execution.Transition(c.Context(), userID(c), c.Params("id"), services.TransitionRequest{
		Status: req.Status,
		Result: req.Result,
		Error:  req.Error,
	})
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteWorkflowRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	result, err := h.execution.Execute(c.Context(), services.ExecuteRequest{
		UserID:      userID(c),
		WorkflowID:  c.Params("id"),
		InstanceURL: req.InstanceURL,
		APIKey:      req.APIKey,
	})
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) Dispatch(c fiber.Ctx) error {
	var req DispatchRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	result, err := h.execution.DispatchStateless(c.Context(), req.InstanceURL, req.APIKey, req.Graph)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"id":      result.EngineID,
		"status":  result.Status,
		"success": true,
	})
}
