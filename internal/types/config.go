package types

import "time"

// Config is the root configuration for the step-notification pipeline,
// populated from the environment via envconfig and validated with
// go-playground/validator.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Database DatabaseConfig
	Redis    RedisConfig
	Push     PushConfig
	Worker   WorkerConfig
	Metrics  MetricsConfig

	Build BuildInfo `ignored:"true"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string `envconfig:"DATABASE_URL" validate:"required"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"4" validate:"min=1"`
}

// RedisConfig holds connection settings for the delayed job queue.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" validate:"required"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// PushConfig holds Web Push (VAPID) settings.
type PushConfig struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY" validate:"required"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY" validate:"required"`

	// Subscriber is the contact address sent to the push service, per the
	// VAPID spec.
	Subscriber string `envconfig:"PUSH_SUBSCRIBER" validate:"required,email"`

	// TTL is how long (seconds) the push service may hold an undelivered
	// message.
	TTL int `envconfig:"PUSH_TTL" default:"60" validate:"min=0"`
}

// WorkerConfig controls the dispatcher loop and retry policy.
type WorkerConfig struct {
	PollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"1s" validate:"min=100ms"`
	Concurrency  int           `envconfig:"WORKER_CONCURRENCY" default:"4" validate:"min=1"`
	ClaimBatch   int           `envconfig:"WORKER_CLAIM_BATCH" default:"32" validate:"min=1"`
	MaxAttempts  int           `envconfig:"JOB_MAX_ATTEMPTS" default:"5" validate:"min=1"`
	BackoffBase  time.Duration `envconfig:"JOB_BACKOFF_BASE" default:"30s" validate:"min=1s"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// BuildInfo carries linker-injected build metadata.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ScheduleOptions derives the per-job retry options from the worker config.
func (c WorkerConfig) ScheduleOptions() ScheduleOptions {
	return ScheduleOptions{
		MaxAttempts: c.MaxAttempts,
		BackoffBase: c.BackoffBase,
	}
}
