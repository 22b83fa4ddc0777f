package temporalx

import (
	"context"
	"errors"

	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
)

// Dispatcher starts one reconcile workflow per job_run row.
type Dispatcher struct {
	tc  temporalsdkclient.Client
	cfg Config
}

func NewDispatcher(tc temporalsdkclient.Client, cfg Config) *Dispatcher {
	return &Dispatcher{tc: tc, cfg: cfg}
}

// Enabled is false for a nil dispatcher or one without a client.
func (d *Dispatcher) Enabled() bool { return d != nil && d.tc != nil }

// StartReconcile is idempotent per job id: an execution that already
// exists counts as dispatched.
func (d *Dispatcher) StartReconcile(ctx context.Context, jobID, entryID string) error {
	_, err := d.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        workflowID(jobID),
		TaskQueue: d.cfg.TaskQueue,
	}, ReconcileWorkflowName, ReconcileInput{JobID: jobID, EntryID: entryID})
	if err == nil {
		return nil
	}
	var already *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &already) {
		return nil
	}
	return err
}
