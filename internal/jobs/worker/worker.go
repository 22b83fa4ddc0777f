package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/mindjourney-backend/internal/data/repos"
	types "github.com/yungbote/mindjourney-backend/internal/domain"
	"github.com/yungbote/mindjourney-backend/internal/jobs/runtime"
	"github.com/yungbote/mindjourney-backend/internal/observability"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/envutil"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

type Config struct {
	Concurrency       int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	StaleRunning      time.Duration
	Retry             runtime.RetryPolicy
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:       envutil.Int("WORKER_CONCURRENCY", 4),
		PollInterval:      envutil.Duration("WORKER_POLL_INTERVAL", time.Second),
		HeartbeatInterval: envutil.Duration("WORKER_HEARTBEAT_INTERVAL", 30*time.Second),
		StaleRunning:      envutil.Duration("JOB_STALE_RUNNING", 30*time.Minute),
		Retry:             runtime.RetryPolicyFromEnv(),
	}
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   runtime.Notifier
	cfg      Config
	wg       sync.WaitGroup
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify runtime.Notifier, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.StaleRunning <= 0 {
		cfg.StaleRunning = 30 * time.Minute
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg,
	}
}

// Start launches the poll loops. Wait blocks until they exit after ctx ends.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_types", w.registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// drain everything due before sleeping again
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims and executes at most one job. It reports whether a job ran.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.StaleRunning)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	_ = w.Execute(ctx, job)
	return true, nil
}

// Execute runs one already-claimed job and settles its row. The returned
// error is the handler failure, if any; job.Status tells whether another
// attempt is allowed.
func (w *Worker) Execute(ctx context.Context, job *types.JobRun) error {
	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify, w.cfg.Retry)
	log := w.log.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		log.Warn("No handler registered for job_type")
		err := apperr.Wrap(apperr.CodeConfiguration, "worker.dispatch", &missingHandlerError{JobType: job.JobType})
		jc.Fail("dispatch", err)
		observability.Current().IncJob(job.JobType, job.Status)
		return err
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go func() {
		t := time.NewTicker(w.cfg.HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				jc.Heartbeat()
			}
		}
	}()

	start := time.Now()
	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Job handler panic", "panic", r)
				runErr = errFromRecover(r)
				jc.Fail("panic", runErr)
			}
		}()
		if runErr = h.Run(jc); runErr != nil {
			jc.Fail("run", runErr)
			return
		}
		if !jc.Settled() {
			jc.Succeed(nil)
		}
	}()
	stopHeartbeat()

	observability.Current().IncJob(job.JobType, job.Status)
	if runErr != nil {
		log.Warn("Job attempt failed", "status", job.Status, "run_after", job.RunAfter, "error", job.Error)
		return runErr
	}
	log.Debug("Job succeeded", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
