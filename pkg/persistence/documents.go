package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/socialflow/pkg/models"
)

// Documents implements Persistence on top of any Store.
type Documents struct {
	store      Store
	workflows  *workflowRepository
	executions *executionRepository
	routines   *routineRepository
}

// NewDocuments wraps a store with the workflow, execution and routine repositories.
func NewDocuments(store Store) *Documents {
	return &Documents{
		store:      store,
		workflows:  &workflowRepository{docs: collection[models.WorkflowRecord]{store: store, name: CollectionWorkflows}},
		executions: &executionRepository{docs: collection[models.Execution]{store: store, name: CollectionExecutions}},
		routines:   &routineRepository{docs: collection[models.Routine]{store: store, name: CollectionRoutines}},
	}
}

func (d *Documents) WorkflowRepository() WorkflowRepository {
	return d.workflows
}

func (d *Documents) ExecutionRepository() ExecutionRepository {
	return d.executions
}

func (d *Documents) RoutineRepository() RoutineRepository {
	return d.routines
}

func (d *Documents) HealthCheck(ctx context.Context) error {
	return d.store.HealthCheck(ctx)
}

func (d *Documents) Close(ctx context.Context) error {
	return d.store.Close(ctx)
}

// collection decodes one document type.
type collection[T any] struct {
	store Store
	name  string
}

func (c collection[T]) get(ctx context.Context, id string) (*T, error) {
	body, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}

	var document T
	if err := json.Unmarshal(body, &document); err != nil {
		return nil, &DocumentError{Op: "Get", Collection: c.name, ID: id, Err: err}
	}

	return &document, nil
}

func (c collection[T]) put(ctx context.Context, id string, document *T) error {
	body, err := json.Marshal(document)
	if err != nil {
		return &DocumentError{Op: "Put", Collection: c.name, ID: id, Err: err}
	}

	return c.store.Put(ctx, c.name, id, body)
}

func (c collection[T]) all(ctx context.Context) ([]*T, error) {
	bodies, err := c.store.List(ctx, c.name)
	if err != nil {
		return nil, err
	}

	documents := make([]*T, 0, len(bodies))

	for _, body := range bodies {
		var document T
		if err := json.Unmarshal(body, &document); err != nil {
			return nil, &DocumentError{Op: "List", Collection: c.name, Err: err}
		}

		documents = append(documents, &document)
	}

	return documents, nil
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, ErrDocumentNotFound) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}

	return err
}

type workflowRepository struct {
	docs collection[models.WorkflowRecord]
}

// ListWorkflows returns paginated and filtered workflow records with in-memory operations.
func (wr *workflowRepository) ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.Offset < 0 {
		opts.Offset = 0
	}

	if opts.SortBy == "" {
		opts.SortBy = "updated_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	allowedSorts := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSortField, opts.SortBy)
	}

	records, err := wr.docs.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	filtered := make([]*models.WorkflowRecord, 0, len(records))

	for _, record := range records {
		if opts.UserID != "" && record.UserID != opts.UserID {
			continue
		}

		if opts.Favorite != nil && record.Favorite != *opts.Favorite {
			continue
		}

		filtered = append(filtered, record)
	}

	sortRecords(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))
	if opts.Offset >= len(filtered) {
		return &WorkflowListResult{
			Workflows:  make([]*models.WorkflowRecord, 0),
			TotalCount: totalCount,
		}, nil
	}

	end := min(opts.Offset+opts.Limit, len(filtered))

	return &WorkflowListResult{
		Workflows:   filtered[opts.Offset:end],
		TotalCount:  totalCount,
		HasNextPage: end < len(filtered),
	}, nil
}

func sortRecords(records []*models.WorkflowRecord, sortBy, sortOrder string) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if sortOrder == "desc" {
			a, b = b, a
		}

		switch sortBy {
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		case "name":
			return a.Workflow.Name < b.Workflow.Name
		default:
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
	})
}

func (wr *workflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowRecord, error) {
	record, err := wr.docs.get(ctx, id)
	if err != nil {
		return nil, NewWorkflowError("GetByID", id, notFound(err, ErrWorkflowNotFound))
	}

	return record, nil
}

// Save stamps timestamps and writes the record. The record id always matches the workflow id.
func (wr *workflowRepository) Save(ctx context.Context, record *models.WorkflowRecord) error {
	if record.Workflow != nil {
		record.Workflow.ID = record.ID
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	record.UpdatedAt = now

	if err := wr.docs.put(ctx, record.ID, record); err != nil {
		return NewWorkflowError("Save", record.ID, err)
	}

	return nil
}

func (wr *workflowRepository) Delete(ctx context.Context, id string) error {
	if err := wr.docs.store.Delete(ctx, wr.docs.name, id); err != nil {
		return NewWorkflowError("Delete", id, err)
	}

	return nil
}

type executionRepository struct {
	docs collection[models.Execution]
}

func (er *executionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	execution, err := er.docs.get(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrExecutionNotFound)
	}

	return execution, nil
}

func (er *executionRepository) Save(ctx context.Context, execution *models.Execution) error {
	execution.UpdatedAt = time.Now().UTC()

	return er.docs.put(ctx, execution.ID, execution)
}

// ListByWorkflow returns the workflow's executions, newest first.
func (er *executionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	executions, err := er.docs.all(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Execution, 0)

	for _, execution := range executions {
		if execution.WorkflowID == workflowID {
			matches = append(matches, execution)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].SubmittedAt.After(matches[j].SubmittedAt)
	})

	return matches, nil
}

type routineRepository struct {
	docs collection[models.Routine]
}

func (rr *routineRepository) GetByID(ctx context.Context, id string) (*models.Routine, error) {
	routine, err := rr.docs.get(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrRoutineNotFound)
	}

	return routine, nil
}

func (rr *routineRepository) Save(ctx context.Context, routine *models.Routine) error {
	now := time.Now().UTC()
	if routine.CreatedAt.IsZero() {
		routine.CreatedAt = now
	}

	routine.UpdatedAt = now

	return rr.docs.put(ctx, routine.ID, routine)
}

func (rr *routineRepository) Delete(ctx context.Context, id string) error {
	return rr.docs.store.Delete(ctx, rr.docs.name, id)
}

func (rr *routineRepository) ListByUser(ctx context.Context, userID string) ([]*models.Routine, error) {
	return rr.filter(ctx, func(routine *models.Routine) bool { return routine.UserID == userID })
}

func (rr *routineRepository) ListActive(ctx context.Context) ([]*models.Routine, error) {
	return rr.filter(ctx, func(routine *models.Routine) bool { return routine.Active })
}

func (rr *routineRepository) filter(ctx context.Context, keep func(*models.Routine) bool) ([]*models.Routine, error) {
	routines, err := rr.docs.all(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Routine, 0)

	for _, routine := range routines {
		if keep(routine) {
			matches = append(matches, routine)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})

	return matches, nil
}
