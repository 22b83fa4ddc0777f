package insights_reconcile

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/mindjourney-backend/internal/insights/reconcile"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

const (
	JobType    = "insights_reconcile"
	EntityType = "entry"
)

// Reconciler is satisfied by *reconcile.Reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context, entryID uuid.UUID) (reconcile.Result, error)
}

type Pipeline struct {
	log        *logger.Logger
	reconciler Reconciler
}

func New(baseLog *logger.Logger, reconciler Reconciler) *Pipeline {
	return &Pipeline{
		log:        baseLog.With("job", JobType),
		reconciler: reconciler,
	}
}

func (p *Pipeline) Type() string { return JobType }
