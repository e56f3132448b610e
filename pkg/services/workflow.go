package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukex/socialflow/pkg/catalog"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/persistence"
	"github.com/google/uuid"
)

type Workflow struct {
	persistence persistence.Persistence
	catalog     *catalog.Catalog
	logger      *slog.Logger
}

// NewWorkflow creates a new workflow service. A nil catalog means the built-in one.
func NewWorkflow(persistence persistence.Persistence, actions *catalog.Catalog, logger *slog.Logger) *Workflow {
	if actions == nil {
		actions = catalog.Default
	}

	return &Workflow{
		persistence: persistence,
		catalog:     actions,
		logger:      logger.With("module", "workflow_service"),
	}
}

// Catalog returns the action catalog the service edits with.
func (w *Workflow) Catalog() *catalog.Catalog {
	return w.catalog
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	// Pagination
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`

	// Filtering
	UserID   string
	Favorite *bool

	// Sorting
	SortBy    string `validate:"oneof=created_at updated_at name"`
	SortOrder string `validate:"oneof=asc desc"`
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.WorkflowRecord `json:"workflows"`
	TotalCount  int64                    `json:"total_count"`
	HasNextPage bool                     `json:"has_next_page"`
}

// ListWorkflows retrieves a user's workflows with filtering, sorting, and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if err := w.validateListWorkflowsRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	opts := persistence.ListWorkflowsOptions{
		UserID:    req.UserID,
		Favorite:  req.Favorite,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
		Limit:     req.Limit,
		Offset:    req.Offset,
	}

	result, err := w.persistence.WorkflowRepository().ListWorkflows(ctx, opts)
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return nil, ErrInvalidSortField
		}

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

// validateListWorkflowsRequest validates and sets defaults for the request.
func (w *Workflow) validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return ErrEmptyUserID
	}

	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "updated_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	allowedSorts := []string{"created_at", "updated_at", "name"}

	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	return nil
}

// FetchByID retrieves a workflow record owned by userID.
// Records of other users are reported as missing.
func (w *Workflow) FetchByID(ctx context.Context, userID, id string) (*models.WorkflowRecord, error) {
	record, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if record.UserID != userID {
		return nil, persistence.NewWorkflowError("FetchByID", id, ErrWorkflowNotFound)
	}

	if record.Workflow == nil {
		record.Workflow = models.NewWorkflow(id, "")
	}

	return record, nil
}

// Create stores a new workflow for userID under a fresh id.
func (w *Workflow) Create(ctx context.Context, userID string, workflow *models.Workflow) (*models.WorkflowRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}

	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	if strings.TrimSpace(workflow.Name) == "" {
		return nil, ErrWorkflowNameRequired
	}

	workflow.ID = uuid.New().String()
	normalize(workflow)

	if err := checkStructure(workflow); err != nil {
		return nil, err
	}

	record := &models.WorkflowRecord{
		ID:       workflow.ID,
		UserID:   userID,
		Workflow: workflow,
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow created", "workflow_id", record.ID, "user_id", userID)

	return record, nil
}

// Update replaces the workflow content of an existing record, keeping its owner,
// favourite flag and creation time.
func (w *Workflow) Update(ctx context.Context, userID, id string, workflow *models.Workflow) (*models.WorkflowRecord, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	if strings.TrimSpace(workflow.Name) == "" {
		return nil, ErrWorkflowNameRequired
	}

	existing, err := w.FetchByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	normalize(workflow)

	if err := checkStructure(workflow); err != nil {
		return nil, err
	}

	existing.Workflow = workflow

	if err := w.persistence.WorkflowRepository().Save(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return existing, nil
}

// SetFavorite marks or unmarks a workflow as a favourite.
func (w *Workflow) SetFavorite(ctx context.Context, userID, id string, favorite bool) (*models.WorkflowRecord, error) {
	existing, err := w.FetchByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	existing.Favorite = favorite

	if err := w.persistence.WorkflowRepository().Save(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return existing, nil
}

// Delete removes a workflow by its ID. Workflows scheduled by an active routine are kept.
func (w *Workflow) Delete(ctx context.Context, userID, id string) error {
	if _, err := w.FetchByID(ctx, userID, id); err != nil {
		return err
	}

	routines, err := w.persistence.RoutineRepository().ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check routines: %w", err)
	}

	for _, routine := range routines {
		if routine.Active && routine.WorkflowID == id {
			return &ServiceError{
				Op:      "Delete",
				Code:    "WORKFLOW_IN_USE",
				Message: fmt.Sprintf("workflow %s is scheduled by routine %s", id, routine.ID),
				Err:     ErrWorkflowInUse,
			}
		}
	}

	if err := w.persistence.WorkflowRepository().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", id, "user_id", userID)

	return nil
}

// normalize fills the collections and config a decoded workflow may omit.
func normalize(workflow *models.Workflow) {
	if workflow.Steps == nil {
		workflow.Steps = make([]*models.Step, 0)
	}

	if workflow.Edges == nil {
		workflow.Edges = make([]*models.Edge, 0)
	}

	defaults := models.DefaultConfig()

	if workflow.Config.TimeoutMs <= 0 {
		workflow.Config.TimeoutMs = defaults.TimeoutMs
	}

	if workflow.Config.OnError == "" {
		workflow.Config.OnError = defaults.OnError
	}
}
