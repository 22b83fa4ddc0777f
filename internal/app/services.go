package app

import (
	"fmt"

	"gorm.io/gorm"

	redisx "github.com/yungbote/mindjourney-backend/internal/clients/redis"
	"github.com/yungbote/mindjourney-backend/internal/documents"
	"github.com/yungbote/mindjourney-backend/internal/insights/extract"
	"github.com/yungbote/mindjourney-backend/internal/insights/geocode"
	"github.com/yungbote/mindjourney-backend/internal/insights/prompts"
	"github.com/yungbote/mindjourney-backend/internal/insights/reconcile"
	"github.com/yungbote/mindjourney-backend/internal/insights/sweep"
	insightsjob "github.com/yungbote/mindjourney-backend/internal/jobs/pipeline/insights_reconcile"
	"github.com/yungbote/mindjourney-backend/internal/jobs/runtime"
	"github.com/yungbote/mindjourney-backend/internal/jobs/worker"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
	"github.com/yungbote/mindjourney-backend/internal/services"
	"github.com/yungbote/mindjourney-backend/internal/temporalx"
)

type Services struct {
	Reconciler *reconcile.Reconciler
	Jobs       services.JobService
	Scheduler  services.ReconcileScheduler
	Sweeper    *sweep.Sweeper
	Entries    services.EntryService

	Registry *runtime.Registry
	Worker   *worker.Worker
	// Temporal replaces the database poller when configured.
	Temporal *temporalx.Runner
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients, notifier *redisx.Notifier) (Services, error) {
	log.Info("Wiring services...")

	set, err := prompts.Load()
	if err != nil {
		return Services{}, fmt.Errorf("load prompts: %w", err)
	}
	extractor := extract.NewClient(log, clients.OpenAI, set)
	geocoder := geocode.NewClient(log, clients.OpenAI, set)

	reconciler, err := reconcile.New(reconcile.Deps{
		DB:         db,
		Log:        log,
		Entries:    reposet.Entries,
		Documents:  reposet.Documents,
		Categories: reposet.Categories,
		Insights:   reposet.Insights,
		Extractor:  extractor,
		Geocoder:   geocoder,
		Notifier:   notifier,
	})
	if err != nil {
		return Services{}, err
	}

	dispatcher := temporalx.NewDispatcher(clients.Temporal, cfg.Temporal)
	jobs := services.NewJobService(db, log, reposet.JobRuns, dispatcher)

	scheduler, err := services.NewReconcileScheduler(cfg.Insights.ExecutionMode, log, jobs, reconciler)
	if err != nil {
		return Services{}, err
	}

	sweepOpts := []sweep.Option{sweep.WithBatchLimit(cfg.Insights.SweepBatch)}
	if clients.Locker != nil {
		sweepOpts = append(sweepOpts, sweep.WithLocker(clients.Locker, cfg.Insights.SweepLockTTL))
	}
	sweeper := sweep.New(log, reposet.Entries, scheduler, sweepOpts...)

	store, err := documents.NewLocalStore(log, cfg.Insights.DocumentsDir)
	if err != nil {
		return Services{}, err
	}

	entries := services.NewEntryService(services.EntryServiceDeps{
		Log:       log,
		Entries:   reposet.Entries,
		Documents: reposet.Documents,
		Insights:  reposet.Insights,
		Store:     store,
		Titles:    extractor,
		Scheduler: scheduler,
		Sweeper:   sweeper,
	})

	registry := runtime.NewRegistry()
	if err := registry.Register(insightsjob.New(log, reconciler)); err != nil {
		return Services{}, err
	}
	w := worker.NewWorker(db, log, reposet.JobRuns, registry, notifier, cfg.Worker.toWorker())

	out := Services{
		Reconciler: reconciler,
		Jobs:       jobs,
		Scheduler:  scheduler,
		Sweeper:    sweeper,
		Entries:    entries,
		Registry:   registry,
		Worker:     w,
	}
	if clients.Temporal != nil {
		runner, err := temporalx.NewRunner(log, clients.Temporal, cfg.Temporal, &temporalx.Activities{
			Log:  log,
			Jobs: reposet.JobRuns,
			Exec: w,
		}, cfg.Worker.Concurrency)
		if err != nil {
			return Services{}, err
		}
		out.Temporal = runner
	}
	return out, nil
}
