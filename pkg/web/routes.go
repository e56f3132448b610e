package web

import "github.com/gofiber/fiber/v3"

// Mount registers the REST API on router. Everything except the health check requires a user.
func (h *APIHandlers) Mount(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	actions := router.Group("/catalog/actions", RequireUser)
	actions.Get("/", h.ListActions)
	actions.Get("/:type", h.GetAction)

	w := router.Group("/workflows", RequireUser)
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Put("/:id/favorite", h.SetFavorite)

	w.Post("/:id/steps", h.AddStep)
	w.Patch("/:id/steps/:stepId", h.UpdateStep)
	w.Delete("/:id/steps/:stepId", h.RemoveStep)

	w.Post("/:id/steps/:stepId/actions", h.AddAction)
	w.Put("/:id/steps/:stepId/actions/:index", h.SetActionParams)
	w.Post("/:id/steps/:stepId/actions/:index/move", h.MoveAction)
	w.Delete("/:id/steps/:stepId/actions/:index", h.RemoveAction)

	w.Post("/:id/edges", h.AddEdge)
	w.Delete("/:id/edges", h.RemoveEdge)

	w.Get("/:id/validation", h.ValidateWorkflow)
	w.Get("/:id/order", h.GetOrder)
	w.Get("/:id/variables", h.GetVariables)
	w.Get("/:id/bindings", h.GetBindings)

	w.Post("/:id/executions", h.SubmitExecution)
	w.Get("/:id/executions", h.ListExecutions)

	e := router.Group("/executions", RequireUser)
	e.Get("/:id", h.GetExecution)
	e.Post("/:id/stop", h.StopExecution)

	r := router.Group("/routines", RequireUser)
	r.Get("/", h.ListRoutines)
	r.Post("/", h.CreateRoutine)
	r.Delete("/:id", h.DeleteRoutine)
}
