// Package executions hands frozen workflow snapshots to a runner and tracks their progress.
package executions

import (
	"context"

	"github.com/dukex/socialflow/pkg/models"
)

// Runner executes snapshots. Implementations must treat the snapshot as read-only.
type Runner interface {
	Submit(ctx context.Context, snapshot *models.Workflow, accountRef string) (string, error)
	Status(ctx context.Context, executionID string) (*models.ExecutionStatus, error)
	Stop(ctx context.Context, executionID, accountRef string) error
}

// NormalizeState maps runner vocabulary onto ExecutionState. Unknown values map to running.
func NormalizeState(state string) models.ExecutionState {
	switch state {
	case "queued", "pending", "submitted":
		return models.ExecutionQueued
	case "succeeded", "success", "completed", "done":
		return models.ExecutionSucceeded
	case "failed", "error":
		return models.ExecutionFailed
	case "stopped", "cancelled", "canceled":
		return models.ExecutionStopped
	default:
		return models.ExecutionRunning
	}
}
