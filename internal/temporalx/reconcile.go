package temporalx

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
)

const (
	ReconcileWorkflowName = "insights_reconcile_workflow"
	ReconcileActivityName = "insights_reconcile_activity"
)

// ReconcileInput identifies the job_run row that records the attempt and
// the entry it reconciles.
type ReconcileInput struct {
	JobID   string `json:"job_id"`
	EntryID string `json:"entry_id"`
}

type ReconcileOutput struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
}

// ReconcileRetryPolicy mirrors the database queue backoff: 60s doubling up
// to 30m, five attempts, with non-retriable error codes failing fast.
func ReconcileRetryPolicy() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    60 * time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    30 * time.Minute,
		MaximumAttempts:    5,
		NonRetryableErrorTypes: []string{
			string(apperr.CodeConfiguration),
			string(apperr.CodeNotFound),
			string(apperr.CodeValidation),
		},
	}
}

func ReconcileWorkflow(ctx workflow.Context, in ReconcileInput) (ReconcileOutput, error) {
	if strings.TrimSpace(in.JobID) == "" {
		return ReconcileOutput{}, temporal.NewNonRetryableApplicationError("missing job_id", string(apperr.CodeValidation), nil)
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy:         ReconcileRetryPolicy(),
	})

	var out ReconcileOutput
	if err := workflow.ExecuteActivity(ctx, ReconcileActivityName, in).Get(ctx, &out); err != nil {
		workflow.GetLogger(ctx).Warn("Reconcile activity gave up", "job_id", in.JobID, "entry_id", in.EntryID, "error", err)
		return out, fmt.Errorf("insights reconcile (entry=%s): %w", in.EntryID, err)
	}
	return out, nil
}

func workflowID(jobID string) string { return "insights_reconcile:" + jobID }
