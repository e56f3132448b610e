// Package persistence stores workflow, execution and routine documents.
package persistence

import (
	"context"

	"github.com/dukex/socialflow/pkg/models"
)

// Document collections.
const (
	CollectionWorkflows  = "workflows"
	CollectionExecutions = "executions"
	CollectionRoutines   = "routines"
)

// Store is a key-value store of JSON documents grouped in collections.
// Get returns ErrDocumentNotFound for a missing id. Delete of a missing id is not an error.
type Store interface {
	Get(ctx context.Context, collection, id string) ([]byte, error)
	Put(ctx context.Context, collection, id string, document []byte) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([][]byte, error)
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	RoutineRepository() RoutineRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters, sorts and paginates workflow records.
type ListWorkflowsOptions struct {
	UserID    string
	Favorite  *bool
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// WorkflowListResult is one page of workflow records.
type WorkflowListResult struct {
	Workflows   []*models.WorkflowRecord
	TotalCount  int64
	HasNextPage bool
}

type WorkflowRepository interface {
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowRecord, error)
	Save(ctx context.Context, record *models.WorkflowRecord) error
	Delete(ctx context.Context, id string) error
}

type ExecutionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	Save(ctx context.Context, execution *models.Execution) error
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
}

type RoutineRepository interface {
	GetByID(ctx context.Context, id string) (*models.Routine, error)
	Save(ctx context.Context, routine *models.Routine) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*models.Routine, error)
	ListActive(ctx context.Context) ([]*models.Routine, error)
}
