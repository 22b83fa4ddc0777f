package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/mindjourney-backend/internal/data/repos"
	"github.com/yungbote/mindjourney-backend/internal/data/repos/testutil"
	types "github.com/yungbote/mindjourney-backend/internal/domain"
	domainjobs "github.com/yungbote/mindjourney-backend/internal/domain/jobs"
	"github.com/yungbote/mindjourney-backend/internal/jobs/runtime"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
)

type funcHandler struct {
	typ string
	fn  func(jc *runtime.Context) error
}

func (h funcHandler) Type() string                  { return h.typ }
func (h funcHandler) Run(jc *runtime.Context) error { return h.fn(jc) }

type countingNotifier struct {
	done, failed, retrying int
}

func (n *countingNotifier) JobDone(ctx context.Context, job *types.JobRun) { n.done++ }

func (n *countingNotifier) JobFailed(ctx context.Context, job *types.JobRun, willRetry bool) {
	n.failed++
	if willRetry {
		n.retrying++
	}
}

type harness struct {
	worker *Worker
	repo   repos.JobRunRepo
	notify *countingNotifier
}

func newHarness(t *testing.T, handlers ...runtime.Handler) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	reg := runtime.NewRegistry()
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	repo := repos.NewJobRunRepo(db, log)
	n := &countingNotifier{}
	w := NewWorker(db, log, repo, reg, n, Config{
		Concurrency: 1,
		Retry:       runtime.RetryPolicy{Base: time.Minute, Max: 30 * time.Minute},
	})
	return &harness{worker: w, repo: repo, notify: n}
}

func (h *harness) enqueue(t *testing.T, jobType string, maxAttempts int) *types.JobRun {
	t.Helper()
	entityID := uuid.New()
	job, err := h.repo.Create(dbctx.Context{Ctx: context.Background()}, &types.JobRun{
		JobType:     jobType,
		EntityType:  "entry",
		EntityID:    &entityID,
		MaxAttempts: maxAttempts,
		Payload:     datatypes.JSON(`{"entry_id":"` + entityID.String() + `"}`),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *types.JobRun {
	t.Helper()
	job, err := h.repo.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return job
}

func TestWorkerSucceeds(t *testing.T) {
	var seen uuid.UUID
	h := newHarness(t, funcHandler{typ: "ok", fn: func(jc *runtime.Context) error {
		seen, _ = jc.PayloadUUID("entry_id")
		jc.Succeed(map[string]int{"inserted": 2})
		return nil
	}})
	job := h.enqueue(t, "ok", 5)

	ran, err := h.worker.RunOnce(context.Background())
	if err != nil || !ran {
		t.Fatalf("RunOnce = %v, %v", ran, err)
	}
	got := h.reload(t, job.ID)
	if got.Status != domainjobs.StatusSucceeded || got.Attempts != 1 {
		t.Fatalf("unexpected job %+v", got)
	}
	if seen != *job.EntityID {
		t.Fatalf("payload entry_id not decoded")
	}
	if string(got.Result) != `{"inserted":2}` {
		t.Fatalf("result not stored: %s", got.Result)
	}
	if h.notify.done != 1 {
		t.Fatalf("expected done notification")
	}

	ran, err = h.worker.RunOnce(context.Background())
	if err != nil || ran {
		t.Fatalf("queue should be empty, got %v %v", ran, err)
	}
}

func TestWorkerRetriableFailureBacksOff(t *testing.T) {
	h := newHarness(t, funcHandler{typ: "flaky", fn: func(jc *runtime.Context) error {
		return apperr.New(apperr.CodeUpstream, "test", "model timeout")
	}})
	job := h.enqueue(t, "flaky", 5)

	before := time.Now().UTC()
	if _, err := h.worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	got := h.reload(t, job.ID)
	if got.Status != domainjobs.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.RunAfter.Before(before.Add(59 * time.Second)) {
		t.Fatalf("run_after not pushed out: %s", got.RunAfter)
	}
	if h.notify.retrying != 1 {
		t.Fatalf("expected a will-retry notification")
	}

	// Not due yet.
	ran, err := h.worker.RunOnce(context.Background())
	if err != nil || ran {
		t.Fatalf("job should wait for its backoff, ran=%v err=%v", ran, err)
	}
}

func TestWorkerNonRetriableAndExhaustedGoDead(t *testing.T) {
	h := newHarness(t,
		funcHandler{typ: "gone", fn: func(jc *runtime.Context) error {
			return apperr.New(apperr.CodeNotFound, "test", "entry missing")
		}},
		funcHandler{typ: "last", fn: func(jc *runtime.Context) error {
			return errors.New("boom")
		}},
	)
	gone := h.enqueue(t, "gone", 5)
	if _, err := h.worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := h.reload(t, gone.ID); got.Status != domainjobs.StatusDead {
		t.Fatalf("not_found should be dead, got %s", got.Status)
	}

	last := h.enqueue(t, "last", 1)
	if _, err := h.worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	got := h.reload(t, last.ID)
	if got.Status != domainjobs.StatusDead || got.Error == "" {
		t.Fatalf("exhausted job should be dead with error, got %+v", got)
	}
}

func TestWorkerRecoversPanicsAndUnknownTypes(t *testing.T) {
	h := newHarness(t, funcHandler{typ: "panics", fn: func(jc *runtime.Context) error {
		panic("nil map")
	}})
	p := h.enqueue(t, "panics", 5)
	u := h.enqueue(t, "unknown", 5)

	for i := 0; i < 2; i++ {
		if _, err := h.worker.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
	}
	if got := h.reload(t, p.ID); got.Status != domainjobs.StatusFailed {
		t.Fatalf("panic should be a retriable failure, got %s", got.Status)
	}
	if got := h.reload(t, u.ID); got.Status != domainjobs.StatusDead {
		t.Fatalf("unknown job type should be dead, got %s", got.Status)
	}
}
