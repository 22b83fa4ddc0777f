package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	redisx "github.com/yungbote/mindjourney-backend/internal/clients/redis"
	"github.com/yungbote/mindjourney-backend/internal/data/db"
	"github.com/yungbote/mindjourney-backend/internal/insights/sweep"
	"github.com/yungbote/mindjourney-backend/internal/jobs/runtime"
	"github.com/yungbote/mindjourney-backend/internal/jobs/worker"
	"github.com/yungbote/mindjourney-backend/internal/platform/envutil"
	"github.com/yungbote/mindjourney-backend/internal/platform/openai"
	"github.com/yungbote/mindjourney-backend/internal/services"
	"github.com/yungbote/mindjourney-backend/internal/temporalx"
)

const configPathEnv = "MINDJOURNEY_CONFIG"

type Config struct {
	LogMode     string   `yaml:"log_mode"`
	Port        string   `yaml:"port"`
	ServiceName string   `yaml:"service_name"`
	Environment string   `yaml:"environment"`
	Version     string   `yaml:"version"`
	CORSOrigins []string `yaml:"cors_origins"`

	DB       db.Config        `yaml:"db"`
	OpenAI   openai.Config    `yaml:"openai"`
	Insights InsightsConfig   `yaml:"insights"`
	Worker   WorkerConfig     `yaml:"worker"`
	Redis    redisx.Config    `yaml:"redis"`
	Temporal temporalx.Config `yaml:"temporal"`
}

type InsightsConfig struct {
	ExecutionMode   string        `yaml:"execution_mode"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	SweepBatch      int           `yaml:"sweep_batch"`
	SweepLockTTL    time.Duration `yaml:"sweep_lock_ttl"`
	RunStartupCheck bool          `yaml:"run_startup_check"`
	DocumentsDir    string        `yaml:"documents_dir"`
}

type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	StaleRunning      time.Duration `yaml:"stale_running"`
	RetryBase         time.Duration `yaml:"retry_base"`
	RetryMax          time.Duration `yaml:"retry_max"`
}

func (w WorkerConfig) toWorker() worker.Config {
	return worker.Config{
		Concurrency:       w.Concurrency,
		PollInterval:      w.PollInterval,
		HeartbeatInterval: w.HeartbeatInterval,
		StaleRunning:      w.StaleRunning,
		Retry:             runtime.RetryPolicy{Base: w.RetryBase, Max: w.RetryMax},
	}
}

func DefaultConfig() Config {
	return Config{
		LogMode:     "development",
		Port:        "8080",
		ServiceName: "mindjourney-backend",
		Environment: "development",
		Version:     "dev",
		DB: db.Config{
			Driver:  db.DriverPostgres,
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "mindjourney",
			SSLMode: "disable",
		},
		OpenAI: openai.DefaultConfig(),
		Insights: InsightsConfig{
			ExecutionMode:   services.ExecutionQueued,
			SweepInterval:   sweep.DefaultInterval,
			SweepLockTTL:    2 * time.Minute,
			RunStartupCheck: true,
		},
		Worker: WorkerConfig{
			Concurrency:       4,
			PollInterval:      time.Second,
			HeartbeatInterval: 30 * time.Second,
			StaleRunning:      30 * time.Minute,
			RetryBase:         runtime.DefaultRetryBase,
			RetryMax:          runtime.DefaultRetryMax,
		},
		Redis:    redisx.Config{Channel: "mindjourney.events"},
		Temporal: temporalx.DefaultConfig(),
	}
}

// LoadConfig layers defaults, the optional YAML file named by
// MINDJOURNEY_CONFIG, then the environment.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv(configPathEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg = cfg.withEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withEnv() Config {
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)
	c.Port = envutil.String("PORT", c.Port)
	c.ServiceName = envutil.String("OTEL_SERVICE_NAME", c.ServiceName)
	c.Environment = envutil.String("APP_ENV", c.Environment)
	c.Version = envutil.String("APP_VERSION", c.Version)
	if raw := envutil.String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		c.CORSOrigins = splitList(raw)
	}

	c.DB.Driver = envutil.String("DB_DRIVER", c.DB.Driver)
	c.DB.Host = envutil.String("POSTGRES_HOST", c.DB.Host)
	c.DB.Port = envutil.String("POSTGRES_PORT", c.DB.Port)
	c.DB.User = envutil.String("POSTGRES_USER", c.DB.User)
	c.DB.Password = envutil.String("POSTGRES_PASSWORD", c.DB.Password)
	c.DB.Name = envutil.String("POSTGRES_NAME", c.DB.Name)
	c.DB.SSLMode = envutil.String("POSTGRES_SSLMODE", c.DB.SSLMode)
	c.DB.SQLitePath = envutil.String("SQLITE_PATH", c.DB.SQLitePath)

	c.OpenAI = c.OpenAI.WithEnv()

	c.Insights.ExecutionMode = envutil.String("INSIGHTS_EXECUTION_MODE", c.Insights.ExecutionMode)
	c.Insights.SweepInterval = envutil.Duration("INSIGHTS_SWEEP_INTERVAL", c.Insights.SweepInterval)
	c.Insights.SweepBatch = envutil.Int("INSIGHTS_SWEEP_BATCH", c.Insights.SweepBatch)
	c.Insights.SweepLockTTL = envutil.Duration("INSIGHTS_SWEEP_LOCK_TTL", c.Insights.SweepLockTTL)
	c.Insights.RunStartupCheck = envutil.Bool("RUN_STARTUP_CHECK", c.Insights.RunStartupCheck)
	c.Insights.DocumentsDir = envutil.String("DOCUMENTS_DIR", c.Insights.DocumentsDir)

	c.Worker.Concurrency = envutil.Int("WORKER_CONCURRENCY", c.Worker.Concurrency)
	c.Worker.PollInterval = envutil.Duration("WORKER_POLL_INTERVAL", c.Worker.PollInterval)
	c.Worker.HeartbeatInterval = envutil.Duration("WORKER_HEARTBEAT_INTERVAL", c.Worker.HeartbeatInterval)
	c.Worker.StaleRunning = envutil.Duration("JOB_STALE_RUNNING", c.Worker.StaleRunning)
	c.Worker.RetryBase = envutil.Duration("JOB_RETRY_BASE", c.Worker.RetryBase)
	c.Worker.RetryMax = envutil.Duration("JOB_RETRY_MAX", c.Worker.RetryMax)

	c.Redis = c.Redis.WithEnv()
	c.Temporal = c.Temporal.WithEnv()
	return c
}

func (c Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Insights.ExecutionMode)) {
	case "", services.ExecutionQueued, services.ExecutionImmediate:
	default:
		return fmt.Errorf("unknown insights execution mode %q", c.Insights.ExecutionMode)
	}
	switch strings.ToLower(strings.TrimSpace(c.DB.Driver)) {
	case "", db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	return nil
}

// Queued reports whether scheduling goes through job_run rows.
func (c Config) Queued() bool {
	return !strings.EqualFold(strings.TrimSpace(c.Insights.ExecutionMode), services.ExecutionImmediate)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
