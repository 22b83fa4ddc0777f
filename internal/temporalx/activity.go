package temporalx

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/mindjourney-backend/internal/data/repos"
	types "github.com/yungbote/mindjourney-backend/internal/domain"
	domainjobs "github.com/yungbote/mindjourney-backend/internal/domain/jobs"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

// JobExecutor runs one claimed job and settles its row.
type JobExecutor interface {
	Execute(ctx context.Context, job *types.JobRun) error
}

type Activities struct {
	Log  *logger.Logger
	Jobs repos.JobRunRepo
	Exec JobExecutor
}

// Reconcile runs a single attempt through the shared job runtime so the
// job_run row stays the source of truth for status and attempts.
func (a *Activities) Reconcile(ctx context.Context, in ReconcileInput) (ReconcileOutput, error) {
	out := ReconcileOutput{JobID: in.JobID}
	jobID, err := uuid.Parse(in.JobID)
	if err != nil || jobID == uuid.Nil {
		return out, temporal.NewNonRetryableApplicationError("invalid job_id", string(apperr.CodeValidation), err)
	}

	job, err := a.Jobs.StartAttempt(dbctx.Context{Ctx: ctx}, jobID)
	if err != nil {
		return out, applicationError(err, !apperr.Retriable(err))
	}
	out.Status, out.Attempts = job.Status, job.Attempts
	if job.Terminal() {
		return out, nil
	}

	stop := startActivityHeartbeat(ctx, 10*time.Second)
	runErr := a.Exec.Execute(ctx, job)
	stop()

	out.Status, out.Attempts = job.Status, job.Attempts
	if runErr == nil {
		return out, nil
	}
	a.Log.Warn("Reconcile attempt failed", "job_id", job.ID, "entry_id", in.EntryID, "attempt", job.Attempts, "status", job.Status, "error", runErr)
	return out, applicationError(runErr, job.Status == domainjobs.StatusDead)
}

// applicationError tags err with its apperr code so the retry policy's
// NonRetryableErrorTypes can match it.
func applicationError(err error, final bool) error {
	code := string(apperr.CodeOf(err))
	if code == "" {
		code = string(apperr.CodeInternal)
	}
	if final {
		return temporal.NewNonRetryableApplicationError(err.Error(), code, err)
	}
	return temporal.NewApplicationErrorWithCause(err.Error(), code, err)
}

func startActivityHeartbeat(ctx context.Context, every time.Duration) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
