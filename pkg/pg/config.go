package pg

import "time"

// Config holds PostgreSQL pool, retry and migration settings.
type Config struct {
	ConnectionString  string        `env:"PG_CONN_URL,required"`
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"2"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`

	// Connect retries with exponential backoff starting at RetryInterval.
	RetryAttempts int           `env:"PG_RETRY_ATTEMPTS" envDefault:"5"`
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"500ms"`

	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"meterkit_migrations"`
}
