package sweep

import (
	"context"
	"time"

	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

const DefaultInterval = 5 * time.Minute

// Loop triggers SweepOnce on a fixed interval. It is started explicitly by
// the entry point and stops with its context.
type Loop struct {
	Sweeper    *Sweeper
	Interval   time.Duration
	RunOnStart bool
	Log        *logger.Logger
}

func (l *Loop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := l.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "SweepLoop")

	if l.RunOnStart {
		if _, err := l.Sweeper.SweepOnce(ctx, "startup"); err != nil && ctx.Err() == nil {
			log.Warn("Startup sweep failed", "error", err)
		}
	}

	log.Info("Sweep loop started", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Sweep loop stopped")
			return nil
		case <-ticker.C:
			if _, err := l.Sweeper.SweepOnce(ctx, "periodic"); err != nil && ctx.Err() == nil {
				log.Warn("Periodic sweep failed", "error", err)
			}
		}
	}
}
