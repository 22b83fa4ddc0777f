package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/mindjourney-backend/internal/domain"
	domainjobs "github.com/yungbote/mindjourney-backend/internal/domain/jobs"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, job *types.JobRun) (*types.JobRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error)
	// ClaimNextRunnable moves the oldest due job to running and bumps its
	// attempt counter. Returns nil, nil when nothing is due.
	ClaimNextRunnable(dbc dbctx.Context, staleRunning time.Duration) (*types.JobRun, error)
	// StartAttempt marks a specific job running for an externally driven
	// attempt. Terminal jobs are returned unchanged.
	StartAttempt(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	// FindQueuedForEntity returns the oldest queued job for the entity, or
	// nil, nil when there is none.
	FindQueuedForEntity(dbc dbctx.Context, jobType, entityType string, entityID uuid.UUID) (*types.JobRun, error)
	CountByStatus(dbc dbctx.Context) (map[string]int64, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, job *types.JobRun) (*types.JobRun, error) {
	if job == nil {
		return nil, apperr.New(apperr.CodeValidation, "JobRunRepo.Create", "nil job")
	}
	if job.Status == "" {
		job.Status = domainjobs.StatusQueued
	}
	if err := dbc.Conn(r.db).Create(job).Error; err != nil {
		return nil, apperr.MapDB("JobRunRepo.Create", err)
	}
	return job, nil
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	var job types.JobRun
	if err := dbc.Conn(r.db).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, apperr.MapDB("JobRunRepo.GetByID", err)
	}
	return &job, nil
}

func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, staleRunning time.Duration) (*types.JobRun, error) {
	now := time.Now().UTC()
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.JobRun
	err := dbc.Conn(r.db).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          status IN ? AND run_after <= ?
        )
        OR (
          status = ?
          AND heartbeat_at IS NOT NULL
          AND heartbeat_at < ?
        )
      `, []string{domainjobs.StatusQueued, domainjobs.StatusFailed}, now,
				domainjobs.StatusRunning, staleCutoff).
			Order("run_after ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.JobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       domainjobs.StatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = domainjobs.StatusRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, apperr.MapDB("JobRunRepo.ClaimNextRunnable", err)
	}
	return claimed, nil
}

func (r *jobRunRepo) StartAttempt(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	now := time.Now().UTC()
	var out *types.JobRun
	err := dbc.Conn(r.db).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		if err := txx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&job).Error; err != nil {
			return err
		}
		out = &job
		if job.Terminal() {
			return nil
		}
		if err := txx.Model(&types.JobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       domainjobs.StatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error; err != nil {
			return err
		}
		job.Status = domainjobs.StatusRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		return nil
	})
	if err != nil {
		return nil, apperr.MapDB("JobRunRepo.StartAttempt", err)
	}
	return out, nil
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	err := dbc.Conn(r.db).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(updates).Error
	return apperr.MapDB("JobRunRepo.UpdateFields", err)
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	err := dbc.Conn(r.db).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, domainjobs.StatusRunning).
		Updates(map[string]interface{}{"heartbeat_at": now, "updated_at": now}).Error
	return apperr.MapDB("JobRunRepo.Heartbeat", err)
}

// FindQueuedForEntity only looks at jobs that have not started. A running
// job may already have read stale content, so callers still enqueue then.
func (r *jobRunRepo) FindQueuedForEntity(dbc dbctx.Context, jobType, entityType string, entityID uuid.UUID) (*types.JobRun, error) {
	if entityID == uuid.Nil || jobType == "" {
		return nil, nil
	}
	var job types.JobRun
	err := dbc.Conn(r.db).
		Where("job_type = ? AND entity_type = ? AND entity_id = ? AND status = ?",
			jobType, entityType, entityID, domainjobs.StatusQueued).
		Order("created_at ASC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.MapDB("JobRunRepo.FindQueuedForEntity", err)
	}
	return &job, nil
}

func (r *jobRunRepo) CountByStatus(dbc dbctx.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := dbc.Conn(r.db).
		Model(&types.JobRun{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.MapDB("JobRunRepo.CountByStatus", err)
	}
	out := make(map[string]int64, len(rows))
	for _, rr := range rows {
		out[rr.Status] = rr.Count
	}
	return out, nil
}
