package executor

import (
	"context"
	"log/slog"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/variables"
	"github.com/google/uuid"
)

// DryRun is a Performer that touches no network. It logs each action and
// returns a result carrying the leaves the catalog declares for its type.
type DryRun struct {
	logger *slog.Logger
}

func NewDryRun(logger *slog.Logger) *DryRun {
	return &DryRun{logger: logger.With("module", "dry_run")}
}

func (d *DryRun) Perform(ctx context.Context, accountRef string, action variables.ResolvedAction) (map[string]any, error) {
	d.logger.InfoContext(ctx, "Performing action",
		"account_ref", accountRef,
		"action_type", action.Type,
		"params", action.Params,
	)

	result := map[string]any{"success": true}

	switch action.Type {
	case models.ActionSendDirectMessage:
		result["messageId"] = syntheticID("msg")
	case models.ActionComment:
		result["commentId"] = syntheticID("comment")
	case models.ActionUploadPhoto:
		result["postId"] = syntheticID("post")
	case models.ActionStartMessageProcessor:
		result["processorId"] = syntheticID("processor")
	case models.ActionMonitorMessages:
		result["users"] = []any{}
		result["count"] = 0
	case models.ActionMonitorPosts:
		result["posts"] = []any{}
		result["count"] = 0
	}

	return result, nil
}

func syntheticID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
