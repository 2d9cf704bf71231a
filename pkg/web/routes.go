package web

import "github.com/gofiber/fiber/v3"

// Register mounts the authenticated endpoints on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	api := router.Group("", h.RequireUser)
	api.Post("/chat", h.Chat)
	api.Post("/executions", h.Dispatch)

	conversations := api.Group("/conversations")
	conversations.Get("/", h.ListConversations)
	conversations.Post("/", h.CreateConversation)
	conversations.Get("/:id", h.GetConversation)
	conversations.Patch("/:id", h.RenameConversation)
	conversations.Delete("/:id", h.DeleteConversation)
	conversations.Get("/:id/messages", h.ListMessages)
	conversations.Post("/:id/messages", h.AppendMessage)
	conversations.Get("/:id/workflows", h.ListWorkflows)
	conversations.Post("/:id/workflows", h.CreateWorkflow)

	workflows := api.Group("/workflows")
	workflows.Get("/:id", h.GetWorkflow)
	workflows.Patch("/:id", h.UpdateWorkflow)
	workflows.Post("/:id/execute", h.ExecuteWorkflow)
}
