package insights_reconcile

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/mindjourney-backend/internal/domain"
	domainjobs "github.com/yungbote/mindjourney-backend/internal/domain/jobs"
	"github.com/yungbote/mindjourney-backend/internal/insights/reconcile"
	jobrt "github.com/yungbote/mindjourney-backend/internal/jobs/runtime"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

type stubReconciler struct {
	got uuid.UUID
	err error
}

func (s *stubReconciler) Reconcile(ctx context.Context, entryID uuid.UUID) (reconcile.Result, error) {
	s.got = entryID
	if s.err != nil {
		return reconcile.Result{}, s.err
	}
	return reconcile.Result{EntryID: entryID, Inserted: 1}, nil
}

func newJobContext(payload string, entityID *uuid.UUID) *jobrt.Context {
	job := &types.JobRun{
		ID:          uuid.New(),
		JobType:     JobType,
		EntityID:    entityID,
		Status:      domainjobs.StatusRunning,
		Attempts:    1,
		MaxAttempts: 5,
		Payload:     datatypes.JSON(payload),
	}
	return jobrt.NewContext(context.Background(), nil, job, nil, nil, jobrt.RetryPolicy{})
}

func TestPipelineRunsReconcile(t *testing.T) {
	id := uuid.New()
	rec := &stubReconciler{}
	jc := newJobContext(`{"entry_id":"`+id.String()+`"}`, nil)
	if err := New(logger.Nop(), rec).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.got != id {
		t.Fatalf("reconciled %s, want %s", rec.got, id)
	}
	if jc.Job.Status != domainjobs.StatusSucceeded {
		t.Fatalf("job not succeeded: %s", jc.Job.Status)
	}
}

func TestPipelineFallsBackToEntityID(t *testing.T) {
	id := uuid.New()
	rec := &stubReconciler{}
	if err := New(logger.Nop(), rec).Run(newJobContext(`{}`, &id)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.got != id {
		t.Fatalf("entity_id fallback not used")
	}
}

func TestPipelineMissingEntryIDIsDead(t *testing.T) {
	jc := newJobContext(`{"entry_id":"not-a-uuid"}`, nil)
	if err := New(logger.Nop(), &stubReconciler{}).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != domainjobs.StatusDead {
		t.Fatalf("invalid payload should be dead, got %s", jc.Job.Status)
	}
}

func TestPipelinePropagatesErrors(t *testing.T) {
	rec := &stubReconciler{err: apperr.New(apperr.CodeUpstream, "extract", "timeout")}
	err := New(logger.Nop(), rec).Run(newJobContext(`{"entry_id":"`+uuid.NewString()+`"}`, nil))
	if !apperr.IsCode(err, apperr.CodeUpstream) {
		t.Fatalf("expected upstream error to reach the worker, got %v", err)
	}
}
