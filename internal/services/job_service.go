package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/mindjourney-backend/internal/data/repos"
	types "github.com/yungbote/mindjourney-backend/internal/domain"
	domainjobs "github.com/yungbote/mindjourney-backend/internal/domain/jobs"
	"github.com/yungbote/mindjourney-backend/internal/jobs/runtime"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/envutil"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

// WorkflowDispatcher hands a persisted job to an external workflow engine.
// A disabled dispatcher leaves the row for the database poller.
type WorkflowDispatcher interface {
	Enabled() bool
	StartReconcile(ctx context.Context, jobID, entryID string) error
}

type JobService interface {
	// Enqueue inserts a queued job_run row. With coalesce set, an existing
	// queued row for the same entity is returned instead and created is false.
	Enqueue(dbc dbctx.Context, req EnqueueRequest) (job *types.JobRun, created bool, err error)
	// Dispatch starts the workflow for a job. Callers inside a transaction
	// must dispatch after commit.
	Dispatch(ctx context.Context, job *types.JobRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*types.JobRun, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type EnqueueRequest struct {
	JobType    string
	EntityType string
	EntityID   uuid.UUID
	Payload    map[string]any
	Coalesce   bool
}

type jobService struct {
	db          *gorm.DB
	log         *logger.Logger
	repo        repos.JobRunRepo
	dispatcher  WorkflowDispatcher
	maxAttempts int
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, dispatcher WorkflowDispatcher) JobService {
	maxAttempts := envutil.Int("JOB_MAX_ATTEMPTS", runtime.DefaultMaxAttempts)
	if maxAttempts < 1 {
		maxAttempts = runtime.DefaultMaxAttempts
	}
	return &jobService{
		db:          db,
		log:         baseLog.With("service", "JobService"),
		repo:        repo,
		dispatcher:  dispatcher,
		maxAttempts: maxAttempts,
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, req EnqueueRequest) (*types.JobRun, bool, error) {
	if strings.TrimSpace(req.JobType) == "" {
		return nil, false, apperr.New(apperr.CodeValidation, "JobService.Enqueue", "missing job_type")
	}
	conn := dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.Tx}
	if conn.Tx == nil {
		conn.Tx = s.db
	}

	if req.Coalesce && req.EntityID != uuid.Nil {
		existing, err := s.repo.FindQueuedForEntity(conn, req.JobType, req.EntityType, req.EntityID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			s.log.Debug("Job already queued; coalescing", "job_type", req.JobType, "entity_id", req.EntityID, "job_id", existing.ID)
			// A queued row may be left over from a failed dispatch. Starting
			// the workflow again is idempotent per job id.
			if !isDBTransaction(dbc.Tx) {
				if err := s.Dispatch(dbc.Ctx, existing); err != nil {
					return existing, false, err
				}
			}
			return existing, false, nil
		}
	}

	payload := req.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if _, ok := payload["trace_id"]; !ok && td.TraceID != "" {
			payload["trace_id"] = td.TraceID
		}
		if _, ok := payload["request_id"]; !ok && td.RequestID != "" {
			payload["request_id"] = td.RequestID
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.CodeValidation, "JobService.Enqueue", err)
	}

	job := &types.JobRun{
		ID:          uuid.New(),
		JobType:     req.JobType,
		EntityType:  req.EntityType,
		Status:      domainjobs.StatusQueued,
		MaxAttempts: s.maxAttempts,
		Payload:     datatypes.JSON(b),
	}
	if req.EntityID != uuid.Nil {
		id := req.EntityID
		job.EntityID = &id
	}
	if _, err := s.repo.Create(conn, job); err != nil {
		return nil, false, err
	}

	// gorm.DB handles are cloned freely, so pointer comparison cannot tell a
	// transaction apart; the ConnPool type can.
	if isDBTransaction(dbc.Tx) {
		s.log.Debug("Job enqueued inside transaction; awaiting dispatch after commit", "job_id", job.ID, "job_type", job.JobType)
		return job, true, nil
	}
	if err := s.Dispatch(dbc.Ctx, job); err != nil {
		return job, true, err
	}
	return job, true, nil
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

func isDBTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.ConnPool == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(txCommitter)
	return ok
}

func (s *jobService) Dispatch(ctx context.Context, job *types.JobRun) error {
	if job == nil || s.dispatcher == nil || !s.dispatcher.Enabled() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	entryID := ""
	if job.EntityID != nil {
		entryID = job.EntityID.String()
	}
	if err := s.dispatcher.StartReconcile(ctx, job.ID.String(), entryID); err != nil {
		// The row stays queued; the next Enqueue for the entity re-dispatches it.
		return apperr.Wrap(apperr.CodeUpstream, "JobService.Dispatch", fmt.Errorf("start workflow for job %s: %w", job.ID, err))
	}
	return nil
}

func (s *jobService) GetByID(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	return s.repo.GetByID(dbctx.Context{Ctx: ctx}, id)
}

func (s *jobService) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return s.repo.CountByStatus(dbctx.Context{Ctx: ctx})
}
