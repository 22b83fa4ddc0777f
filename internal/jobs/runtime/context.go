package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/mindjourney-backend/internal/data/repos"
	types "github.com/yungbote/mindjourney-backend/internal/domain"
	domainjobs "github.com/yungbote/mindjourney-backend/internal/domain/jobs"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
)

// Notifier receives terminal job transitions. Implementations must not block.
type Notifier interface {
	JobDone(ctx context.Context, job *types.JobRun)
	JobFailed(ctx context.Context, job *types.JobRun, willRetry bool)
}

/*
Context is the execution handle for one claimed job_run row.
Handlers never write job_run themselves; they return an error or call
Succeed, and the worker settles the row through Fail/Succeed.
*/
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	Notify  Notifier
	Retry   RetryPolicy
	settled bool
	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, notify Notifier, retry RetryPolicy) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
		Retry:  retry,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	if c.Ctx == nil {
		return
	}
	traceID := payloadString(c.Payload(), "trace_id")
	reqID := payloadString(c.Payload(), "request_id")
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{TraceID: traceID, RequestID: reqID})
}

func payloadString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// PayloadUUID reads key from the payload, falling back to the row's
// entity_id when the key is absent.
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	if v, ok := c.Payload()[key]; ok && v != nil {
		id, err := uuid.Parse(strings.TrimSpace(fmt.Sprint(v)))
		if err == nil && id != uuid.Nil {
			return id, true
		}
		return uuid.Nil, false
	}
	if c.Job != nil && c.Job.EntityID != nil && *c.Job.EntityID != uuid.Nil {
		return *c.Job.EntityID, true
	}
	return uuid.Nil, false
}

func (c *Context) Settled() bool { return c.settled }

func (c *Context) Heartbeat() {
	if c.Repo == nil || c.Job == nil {
		return
	}
	_ = c.Repo.Heartbeat(dbctx.Context{Ctx: c.baseCtx()}, c.Job.ID)
}

// Succeed stores result and marks the run succeeded.
func (c *Context) Succeed(result any) {
	if c == nil || c.settled {
		return
	}
	c.settled = true
	now := time.Now().UTC()
	var res datatypes.JSON
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			res = datatypes.JSON(b)
		}
	}
	if c.Repo != nil && c.Job != nil {
		_ = c.Repo.UpdateFields(dbctx.Context{Ctx: c.baseCtx()}, c.Job.ID, map[string]interface{}{
			"status":       domainjobs.StatusSucceeded,
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		})
	}
	if c.Job != nil {
		c.Job.Status = domainjobs.StatusSucceeded
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
	if c.Notify != nil && c.Job != nil {
		c.Notify.JobDone(c.baseCtx(), c.Job)
	}
}

/*
Fail settles a failed attempt. A retriable error with attempts left goes
back to failed with run_after pushed out by the retry policy; anything else
is dead. Dead jobs are not picked up again; the entry stays unprocessed and
the sweep is the backstop.
*/
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.settled {
		return
	}
	c.settled = true
	now := time.Now().UTC()
	msg := stage
	if err != nil {
		msg = stage + ": " + err.Error()
	}

	status := domainjobs.StatusDead
	runAfter := now
	if c.Job != nil && apperr.Retriable(err) && c.Job.Attempts < c.maxAttempts() {
		status = domainjobs.StatusFailed
		runAfter = now.Add(c.Retry.Delay(c.Job.Attempts))
	}

	if c.Repo != nil && c.Job != nil {
		_ = c.Repo.UpdateFields(dbctx.Context{Ctx: c.baseCtx()}, c.Job.ID, map[string]interface{}{
			"status":        status,
			"error":         msg,
			"run_after":     runAfter,
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		})
	}
	if c.Job != nil {
		c.Job.Status = status
		c.Job.Error = msg
		c.Job.RunAfter = runAfter
		c.Job.LastErrorAt = &now
		c.Job.LockedAt = nil
		c.Job.UpdatedAt = now
	}
	if c.Notify != nil && c.Job != nil {
		c.Notify.JobFailed(c.baseCtx(), c.Job, status == domainjobs.StatusFailed)
	}
}

func (c *Context) maxAttempts() int {
	if c.Job != nil && c.Job.MaxAttempts > 0 {
		return c.Job.MaxAttempts
	}
	return DefaultMaxAttempts
}

// baseCtx drops cancellation so a job interrupted by shutdown still gets
// its terminal row written.
func (c *Context) baseCtx() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(c.Ctx)
}
