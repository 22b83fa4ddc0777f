package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	redisx "github.com/yungbote/mindjourney-backend/internal/clients/redis"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
	"github.com/yungbote/mindjourney-backend/internal/platform/openai"
	"github.com/yungbote/mindjourney-backend/internal/temporalx"
)

// Clients holds the outbound connections. Redis and Temporal are nil when
// their address is not configured.
type Clients struct {
	OpenAI   openai.Client
	Redis    *goredis.Client
	Events   *redisx.EventBus
	Locker   *redisx.Locker
	Temporal temporalsdkclient.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	if cfg.OpenAI.APIKey == "" {
		log.Warn("OPENAI_API_KEY is not set; extraction calls will fail until it is configured")
	}
	out.OpenAI = openai.NewClient(log, cfg.OpenAI)

	if cfg.Redis.Enabled() {
		rdb, err := redisx.NewClient(cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
		out.Events = redisx.NewEventBus(log, rdb, cfg.Redis.Channel)
		out.Locker = redisx.NewLocker(log, rdb)
	}

	tc, err := temporalx.NewClient(log, cfg.Temporal)
	if err != nil {
		out.close(log)
		return Clients{}, fmt.Errorf("init temporal: %w", err)
	}
	out.Temporal = tc
	return out, nil
}

func (c *Clients) close(log *logger.Logger) {
	if c.Temporal != nil {
		c.Temporal.Close()
		c.Temporal = nil
	}
	// the event bus and locker share this connection
	c.Events, c.Locker = nil, nil
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn("Closing redis failed", "error", err)
		}
		c.Redis = nil
	}
}
