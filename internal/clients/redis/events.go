package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/mindjourney-backend/internal/domain"
	"github.com/yungbote/mindjourney-backend/internal/insights/reconcile"
	"github.com/yungbote/mindjourney-backend/internal/platform/envutil"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

const (
	EventInsightsReady = "entry.insights_ready"
	EventJobSucceeded  = "job.succeeded"
	EventJobFailed     = "job.failed"
)

type Event struct {
	Type    string          `json:"type"`
	EntryID string          `json:"entry_id,omitempty"`
	JobID   string          `json:"job_id,omitempty"`
	At      time.Time       `json:"at"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

func ConfigFromEnv() Config {
	return Config{Channel: "mindjourney.events"}.WithEnv()
}

func (c Config) WithEnv() Config {
	c.Addr = envutil.String("REDIS_ADDR", c.Addr)
	c.Password = envutil.String("REDIS_PASSWORD", c.Password)
	c.DB = envutil.Int("REDIS_DB", c.DB)
	c.Channel = envutil.String("REDIS_EVENTS_CHANNEL", c.Channel)
	return c
}

func (c Config) Enabled() bool { return c.Addr != "" }

// NewClient dials and pings redis.
func NewClient(cfg Config) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// EventBus fans pipeline events out over redis pub/sub. It satisfies both
// the reconciler's and the job runtime's notifier interfaces.
type EventBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewEventBus(log *logger.Logger, rdb *goredis.Client, channel string) *EventBus {
	if channel == "" {
		channel = "mindjourney.events"
	}
	return &EventBus{log: log.With("service", "RedisEventBus"), rdb: rdb, channel: channel}
}

func (b *EventBus) Publish(ctx context.Context, ev Event) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Publisher delivers one event. *EventBus publishes to redis; the realtime
// hub delivers in-process when redis is not configured.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Notifier turns pipeline callbacks into events. It satisfies both the
// reconciler and the job runtime notifier interfaces.
type Notifier struct {
	log *logger.Logger
	pub Publisher
}

func NewNotifier(log *logger.Logger, pub Publisher) *Notifier {
	return &Notifier{log: log.With("component", "EventNotifier"), pub: pub}
}

func (n *Notifier) InsightsReady(ctx context.Context, entry *types.Entry, res reconcile.Result) error {
	ev, err := InsightsReadyEvent(entry, res)
	if err != nil {
		return err
	}
	return n.pub.Publish(ctx, ev)
}

func (n *Notifier) JobDone(ctx context.Context, job *types.JobRun) {
	n.publishJob(ctx, JobEvent(EventJobSucceeded, job, nil))
}

func (n *Notifier) JobFailed(ctx context.Context, job *types.JobRun, willRetry bool) {
	if job == nil {
		return
	}
	n.publishJob(ctx, JobEvent(EventJobFailed, job, map[string]any{
		"status":     job.Status,
		"error":      job.Error,
		"attempts":   job.Attempts,
		"will_retry": willRetry,
	}))
}

func (n *Notifier) publishJob(ctx context.Context, ev *Event) {
	if ev == nil {
		return
	}
	if err := n.pub.Publish(ctx, *ev); err != nil {
		n.log.Warn("Publish job event failed", "job_id", ev.JobID, "type", ev.Type, "error", err)
	}
}

func InsightsReadyEvent(entry *types.Entry, res reconcile.Result) (Event, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return Event{}, err
	}
	id := res.EntryID
	if entry != nil && entry.ID != uuid.Nil {
		id = entry.ID
	}
	return Event{Type: EventInsightsReady, EntryID: id.String(), At: time.Now().UTC(), Data: data}, nil
}

// JobEvent returns nil for a nil job.
func JobEvent(typ string, job *types.JobRun, data map[string]any) *Event {
	if job == nil {
		return nil
	}
	ev := &Event{Type: typ, JobID: job.ID.String(), At: time.Now().UTC()}
	if job.EntityID != nil {
		ev.EntryID = job.EntityID.String()
	}
	if data != nil {
		ev.Data, _ = json.Marshal(data)
	}
	return ev
}

// StartForwarder subscribes and calls onEvent for each message until ctx
// ends. It returns once the subscription is confirmed.
func (b *EventBus) StartForwarder(ctx context.Context, onEvent func(Event)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad redis event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

func (b *EventBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
