package insights_reconcile

import (
	"github.com/google/uuid"

	jobrt "github.com/yungbote/mindjourney-backend/internal/jobs/runtime"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	entryID, ok := jc.PayloadUUID("entry_id")
	if !ok || entryID == uuid.Nil {
		jc.Fail("validate", apperr.New(apperr.CodeValidation, "insights_reconcile", "missing entry_id"))
		return nil
	}

	res, err := p.reconciler.Reconcile(jc.Ctx, entryID)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			p.log.Info("Entry gone, dropping job", "entry_id", entryID, "job_id", jc.Job.ID)
		}
		return err
	}
	jc.Succeed(res)
	return nil
}
