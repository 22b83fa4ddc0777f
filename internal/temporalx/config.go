package temporalx

import (
	"time"

	"github.com/yungbote/mindjourney-backend/internal/platform/envutil"
)

type Config struct {
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`

	ClientCertPath string `yaml:"client_cert_path"`
	ClientKeyPath  string `yaml:"client_key_path"`
	ClientCAPath   string `yaml:"client_ca_path"`

	AutoRegisterNamespace bool `yaml:"auto_register_namespace"`
	RetentionDays         int  `yaml:"retention_days"`

	DialTimeout time.Duration `yaml:"dial_timeout"`
	DialMaxWait time.Duration `yaml:"dial_max_wait"`
	Backoff     time.Duration `yaml:"backoff"`
	BackoffMax  time.Duration `yaml:"backoff_max"`
}

func DefaultConfig() Config {
	return Config{
		Namespace:     "mindjourney",
		TaskQueue:     "mindjourney",
		RetentionDays: 7,
		DialTimeout:   5 * time.Second,
		DialMaxWait:   60 * time.Second,
		Backoff:       250 * time.Millisecond,
		BackoffMax:    5 * time.Second,
	}
}

func LoadConfig() Config { return DefaultConfig().WithEnv() }

// WithEnv overrides c with any TEMPORAL_* variables that are set.
func (c Config) WithEnv() Config {
	c.Address = envutil.String("TEMPORAL_ADDRESS", c.Address)
	c.Namespace = envutil.String("TEMPORAL_NAMESPACE", c.Namespace)
	c.TaskQueue = envutil.String("TEMPORAL_TASK_QUEUE", c.TaskQueue)

	c.ClientCertPath = envutil.String("TEMPORAL_CLIENT_CERT_PATH", c.ClientCertPath)
	c.ClientKeyPath = envutil.String("TEMPORAL_CLIENT_KEY_PATH", c.ClientKeyPath)
	c.ClientCAPath = envutil.String("TEMPORAL_CLIENT_CA_PATH", c.ClientCAPath)

	c.AutoRegisterNamespace = envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", c.AutoRegisterNamespace)
	c.RetentionDays = envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", c.RetentionDays)

	c.DialTimeout = envutil.Duration("TEMPORAL_DIAL_TIMEOUT", c.DialTimeout)
	c.DialMaxWait = envutil.Duration("TEMPORAL_DIAL_MAX_WAIT", c.DialMaxWait)
	c.Backoff = envutil.Duration("TEMPORAL_BACKOFF", c.Backoff)
	c.BackoffMax = envutil.Duration("TEMPORAL_BACKOFF_MAX", c.BackoffMax)
	return c
}

// Enabled reports whether producers should dispatch to Temporal instead of
// leaving jobs for the database poller.
func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) hasTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}
