package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/mindjourney-backend/internal/data/repos"
	"github.com/yungbote/mindjourney-backend/internal/observability"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

const lockKey = "mindjourney:sweep"

// Scheduler hands one entry to the reconciliation backend.
type Scheduler interface {
	Schedule(ctx context.Context, entryID uuid.UUID) error
}

// Locker guards a sweep across replicas. ok=false means another holder
// owns the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type Report struct {
	Total       int64 `json:"total"`
	Processed   int64 `json:"processed"`
	Unprocessed int64 `json:"unprocessed"`
	Enqueued    int   `json:"enqueued"`
	Failed      int   `json:"failed,omitempty"`
	Skipped     bool  `json:"skipped,omitempty"`
}

type Sweeper struct {
	log       *logger.Logger
	entries   repos.EntryRepo
	scheduler Scheduler
	locker    Locker
	lockTTL   time.Duration
	batch     int
}

type Option func(*Sweeper)

func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Sweeper) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithBatchLimit caps how many entries one sweep schedules. 0 is unlimited.
func WithBatchLimit(n int) Option {
	return func(s *Sweeper) { s.batch = n }
}

func New(log *logger.Logger, entries repos.EntryRepo, scheduler Scheduler, opts ...Option) *Sweeper {
	s := &Sweeper{
		log:       log.With("component", "RetrySweeper"),
		entries:   entries,
		scheduler: scheduler,
		lockTTL:   2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sweeper) Status(ctx context.Context) (Report, error) {
	total, processed, err := s.entries.CountByProcessed(dbctx.Context{Ctx: ctx})
	if err != nil {
		return Report{}, err
	}
	return Report{Total: total, Processed: processed, Unprocessed: total - processed}, nil
}

// SweepOnce schedules one reconciliation per unprocessed entry. A single
// scheduling failure is logged and counted; it does not stop the sweep.
func (s *Sweeper) SweepOnce(ctx context.Context, trigger string) (Report, error) {
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, lockKey, s.lockTTL)
		if err != nil {
			s.log.Warn("Sweep lock unavailable, sweeping anyway", "error", err)
		} else if !ok {
			s.log.Debug("Sweep already running elsewhere", "trigger", trigger)
			observability.Current().ObserveSweep(trigger, "skipped", 0, 0)
			return Report{Skipped: true}, nil
		} else {
			defer release()
		}
	}

	rep, err := s.Status(ctx)
	if err != nil {
		observability.Current().ObserveSweep(trigger, "error", 0, 0)
		return Report{}, err
	}
	if rep.Unprocessed == 0 {
		s.log.Debug("No unprocessed entries", "trigger", trigger, "total", rep.Total)
		observability.Current().ObserveSweep(trigger, "ok", 0, 0)
		return rep, nil
	}

	ids, err := s.entries.ListUnprocessedIDs(dbctx.Context{Ctx: ctx}, s.batch)
	if err != nil {
		observability.Current().ObserveSweep(trigger, "error", int(rep.Unprocessed), 0)
		return rep, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := s.scheduler.Schedule(ctx, id); err != nil {
			rep.Failed++
			s.log.Warn("Failed to schedule reconciliation", "entry_id", id, "error", err)
			continue
		}
		rep.Enqueued++
	}

	outcome := "ok"
	if rep.Failed > 0 {
		outcome = "partial"
	}
	observability.Current().ObserveSweep(trigger, outcome, int(rep.Unprocessed), rep.Enqueued)
	s.log.Info("Sweep finished",
		"trigger", trigger,
		"total", rep.Total,
		"unprocessed", rep.Unprocessed,
		"enqueued", rep.Enqueued,
		"failed", rep.Failed,
	)
	if rep.Enqueued == 0 && rep.Failed > 0 {
		return rep, fmt.Errorf("sweep: all %d schedules failed", rep.Failed)
	}
	return rep, nil
}
