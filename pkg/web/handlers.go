// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/socialflow/pkg/executions"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/routines"
	"github.com/dukex/socialflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const userLocal = "user_id"

type APIHandlers struct {
	workflowService  *services.Workflow
	executionService *executions.Service
	routineService   *routines.Service
	validator        *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	executionService *executions.Service,
	routineService *routines.Service,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		executionService: executionService,
		routineService:   routineService,
		validator:        validator,
	}
}

// RequireUser rejects requests without the user header and stores the user for handlers.
func RequireUser(c fiber.Ctx) error {
	userID := strings.TrimSpace(c.Get(UserIDHeader))
	if userID == "" {
		return unauthorized(c)
	}

	c.Locals(userLocal, userID)

	return c.Next()
}

func currentUser(c fiber.Ctx) string {
	userID, _ := c.Locals(userLocal).(string)

	return userID
}

func (h *APIHandlers) bind(c fiber.Ctx, req any) error {
	if err := c.Bind().JSON(req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	return nil
}

func (h *APIHandlers) ListActions(c fiber.Ctx) error {
	actions := h.workflowService.Catalog()
	descriptors := make([]fiber.Map, 0)

	for _, actionType := range actions.Types() {
		descriptor, err := actions.Describe(actionType)
		if err != nil {
			return internalError(c, err)
		}

		descriptors = append(descriptors, fiber.Map{
			"descriptor":     descriptor,
			"classification": actions.Classify(actionType),
		})
	}

	return c.JSON(fiber.Map{"actions": descriptors})
}

func (h *APIHandlers) GetAction(c fiber.Ctx) error {
	actionType := models.ActionType(c.Params("type"))
	actions := h.workflowService.Catalog()

	descriptor, err := actions.Describe(actionType)
	if err != nil {
		return notFound(c, "action_not_found", err.Error())
	}

	schema, err := actions.Schema(actionType)
	if err != nil {
		return internalError(c, err)
	}

	defaults, err := actions.DefaultParams(actionType)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"descriptor":       descriptor,
		"classification":   actions.Classify(actionType),
		"schema":           schema,
		"default_params":   defaults,
		"foreach_children": actions.ForEachChildren(actions.Classify(actionType)),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := h.parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListWorkflowsRequest parses query parameters for listing workflows.
func (h *APIHandlers) parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{UserID: currentUser(c)}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if favoriteStr := c.Query("favorite"); favoriteStr != "" {
		favorite, err := strconv.ParseBool(favoriteStr)
		if err != nil {
			return nil, err
		}

		req.Favorite = &favorite
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	record, err := h.workflowService.FetchByID(c.Context(), currentUser(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Socialflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Socialflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	workflow := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Steps:       req.Steps,
		Edges:       req.Edges,
	}

	if req.Config != nil {
		workflow.Config = *req.Config
	}

	created, err := h.workflowService.Create(c.Context(), currentUser(c), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateWorkflowRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	existing, err := h.workflowService.FetchByID(c.Context(), currentUser(c), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	workflow := existing.Workflow

	if req.Name != nil {
		workflow.Name = *req.Name
	}

	if req.Description != nil {
		workflow.Description = *req.Description
	}

	if req.Steps != nil {
		workflow.Steps = req.Steps
	}

	if req.Edges != nil {
		workflow.Edges = req.Edges
	}

	if req.Config != nil {
		workflow.Config = *req.Config
	}

	updated, err := h.workflowService.Update(c.Context(), currentUser(c), id, workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflowService.Delete(c.Context(), currentUser(c), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetFavorite(c fiber.Ctx) error {
	var req FavoriteRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	record, err := h.workflowService.SetFavorite(c.Context(), currentUser(c), c.Params("id"), req.Favorite)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) AddStep(c fiber.Ctx) error {
	var req AddStepRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	stepID, record, err := h.workflowService.AddStep(c.Context(), currentUser(c), c.Params("id"), req.Name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(StepResponse{StepID: stepID, Workflow: record})
}

func (h *APIHandlers) UpdateStep(c fiber.Ctx) error {
	var req UpdateStepRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	record, err := h.workflowService.UpdateStep(c.Context(), currentUser(c), c.Params("id"), c.Params("stepId"), services.StepUpdate{
		Name:           req.Name,
		Retry:          req.Retry,
		Condition:      req.Condition,
		Position:       req.Position,
		ClearRetry:     req.ClearRetry,
		ClearCondition: req.ClearCondition,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) RemoveStep(c fiber.Ctx) error {
	record, err := h.workflowService.RemoveStep(c.Context(), currentUser(c), c.Params("id"), c.Params("stepId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) AddAction(c fiber.Ctx) error {
	var req AddActionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	index, record, err := h.workflowService.AddAction(c.Context(), currentUser(c), c.Params("id"), c.Params("stepId"), req.Type)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ActionResponse{Index: index, Workflow: record})
}

// SetActionParams replaces an action's params. The body is an action document whose type must match.
func (h *APIHandlers) SetActionParams(c fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return badRequest(c, "Action index must be a number")
	}

	var action models.Action
	if err := c.Bind().JSON(&action); err != nil {
		return badRequest(c, "Invalid action: "+err.Error())
	}

	record, err := h.workflowService.SetActionParams(c.Context(), currentUser(c), c.Params("id"), c.Params("stepId"), index, action.Params)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) MoveAction(c fiber.Ctx) error {
	from, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return badRequest(c, "Action index must be a number")
	}

	var req MoveActionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	record, err := h.workflowService.MoveAction(c.Context(), currentUser(c), c.Params("id"), c.Params("stepId"), from, req.To)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) RemoveAction(c fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return badRequest(c, "Action index must be a number")
	}

	record, err := h.workflowService.RemoveAction(c.Context(), currentUser(c), c.Params("id"), c.Params("stepId"), index)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) AddEdge(c fiber.Ctx) error {
	var req EdgeRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	record, err := h.workflowService.AddEdge(c.Context(), currentUser(c), c.Params("id"), req.Source, req.Target, req.Branch)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

func (h *APIHandlers) RemoveEdge(c fiber.Ctx) error {
	var req EdgeRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	record, err := h.workflowService.RemoveEdge(c.Context(), currentUser(c), c.Params("id"), req.Source, req.Target)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	problems, err := h.workflowService.Validate(c.Context(), currentUser(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"valid":  len(problems) == 0,
		"errors": problems,
	})
}

func (h *APIHandlers) GetOrder(c fiber.Ctx) error {
	order, err := h.workflowService.Order(c.Context(), currentUser(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"order": order})
}

func (h *APIHandlers) GetVariables(c fiber.Ctx) error {
	upto := c.Query("upto")
	if upto == "" {
		return badRequest(c, "Query parameter 'upto' is required")
	}

	available, err := h.workflowService.Variables(c.Context(), currentUser(c), c.Params("id"), upto)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"variables": available})
}

func (h *APIHandlers) GetBindings(c fiber.Ctx) error {
	warnings, err := h.workflowService.Bindings(c.Context(), currentUser(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"warnings": warnings})
}

func (h *APIHandlers) SubmitExecution(c fiber.Ctx) error {
	var req SubmitExecutionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	record, err := h.workflowService.FetchByID(c.Context(), currentUser(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	execution, err := h.executionService.Submit(c.Context(), executions.SubmitRequest{
		UserID:     currentUser(c),
		Workflow:   record.Workflow,
		AccountRef: req.AccountID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(SubmitExecutionResponse{
		ExecutionID: execution.ID,
		Status:      execution.State,
	})
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	if _, err := h.workflowService.FetchByID(c.Context(), currentUser(c), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	list, err := h.executionService.ListByWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": list})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")

	if err := h.ownExecution(c, id); err != nil {
		return err
	}

	status, err := h.executionService.Status(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

func (h *APIHandlers) StopExecution(c fiber.Ctx) error {
	id := c.Params("id")

	var req StopExecutionRequest
	if len(c.Body()) > 0 {
		if err := h.bind(c, &req); err != nil {
			return err
		}
	}

	if err := h.ownExecution(c, id); err != nil {
		return err
	}

	if err := h.executionService.Stop(c.Context(), id, req.AccountID); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// ownExecution writes a not-found problem unless the execution belongs to the current user.
func (h *APIHandlers) ownExecution(c fiber.Ctx, id string) error {
	execution, err := h.executionService.Execution(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if execution.UserID != "" && execution.UserID != currentUser(c) {
		return notFound(c, "execution_not_found", "execution not found")
	}

	return nil
}

func (h *APIHandlers) ListRoutines(c fiber.Ctx) error {
	list, err := h.routineService.List(c.Context(), currentUser(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"routines": list})
}

func (h *APIHandlers) CreateRoutine(c fiber.Ctx) error {
	var req CreateRoutineRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	routine, err := h.routineService.Create(c.Context(), routines.CreateRequest{
		UserID:         currentUser(c),
		WorkflowID:     req.WorkflowID,
		AccountRef:     req.AccountID,
		CronExpression: req.CronExpression,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(routine)
}

func (h *APIHandlers) DeleteRoutine(c fiber.Ctx) error {
	if err := h.routineService.Delete(c.Context(), currentUser(c), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
