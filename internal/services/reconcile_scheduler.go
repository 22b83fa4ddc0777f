package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/mindjourney-backend/internal/insights/reconcile"
	insightsjob "github.com/yungbote/mindjourney-backend/internal/jobs/pipeline/insights_reconcile"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

const (
	ExecutionQueued    = "queued"
	ExecutionImmediate = "immediate"
)

// ReconcileScheduler accepts one unit of reconciliation work for an entry.
// Producers and the sweep only see this interface; the backend is picked
// once at startup.
type ReconcileScheduler interface {
	Schedule(ctx context.Context, entryID uuid.UUID) error
}

type Reconciler interface {
	Reconcile(ctx context.Context, entryID uuid.UUID) (reconcile.Result, error)
}

// NewReconcileScheduler maps INSIGHTS_EXECUTION_MODE to a backend.
func NewReconcileScheduler(mode string, log *logger.Logger, jobs JobService, rec Reconciler) (ReconcileScheduler, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ExecutionQueued:
		return NewQueuedScheduler(log, jobs), nil
	case ExecutionImmediate:
		return NewImmediateScheduler(log, rec), nil
	default:
		return nil, fmt.Errorf("unknown INSIGHTS_EXECUTION_MODE %q (want %s or %s)", mode, ExecutionQueued, ExecutionImmediate)
	}
}

// QueuedScheduler persists a job_run row per request. A request for an
// entry that already has a queued, not yet started job is coalesced.
type QueuedScheduler struct {
	log  *logger.Logger
	jobs JobService
}

func NewQueuedScheduler(log *logger.Logger, jobs JobService) *QueuedScheduler {
	return &QueuedScheduler{log: log.With("component", "QueuedScheduler"), jobs: jobs}
}

func (s *QueuedScheduler) Schedule(ctx context.Context, entryID uuid.UUID) error {
	job, created, err := s.jobs.Enqueue(dbctx.Context{Ctx: ctx}, EnqueueRequest{
		JobType:    insightsjob.JobType,
		EntityType: insightsjob.EntityType,
		EntityID:   entryID,
		Payload:    map[string]any{"entry_id": entryID.String()},
		Coalesce:   true,
	})
	if err != nil {
		return err
	}
	if created {
		s.log.Debug("Reconcile job queued", "entry_id", entryID, "job_id", job.ID)
	}
	return nil
}

// ImmediateScheduler runs the pass on the caller's goroutine. Failures are
// returned but not retried; the sweep picks the entry up later.
type ImmediateScheduler struct {
	log *logger.Logger
	rec Reconciler
}

func NewImmediateScheduler(log *logger.Logger, rec Reconciler) *ImmediateScheduler {
	return &ImmediateScheduler{log: log.With("component", "ImmediateScheduler"), rec: rec}
}

func (s *ImmediateScheduler) Schedule(ctx context.Context, entryID uuid.UUID) error {
	_, err := s.rec.Reconcile(ctx, entryID)
	return err
}
